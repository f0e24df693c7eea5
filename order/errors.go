package order

import (
	"errors"
	"fmt"
)

// 错误分类；调用方用 errors.Is / errors.As 区分处理。
var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order transition")
	ErrOverfill          = errors.New("fill exceeds remaining quantity")
)

// ValidationError 表示非法的下单请求；校验失败不会产生任何订单记录。
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid order request: %s %s", e.Field, e.Reason)
}

// IsValidation 判断是否为请求校验错误。
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
