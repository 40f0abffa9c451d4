package app

import (
	"github.com/bft-labs/clockbridge/internal/domain"
	"github.com/bft-labs/clockbridge/internal/ports"
)

// console writes categorised log lines. Error lines go out at error level,
// debug lines at debug level and everything else at info level.
type console struct {
	logger ports.Logger
}

func (c console) print(cat domain.Category, msg string, fields ...ports.Field) {
	fields = append(fields, ports.String("category", string(cat)))
	switch cat {
	case domain.CategoryError:
		c.logger.Error(msg, fields...)
	case domain.CategoryDebug:
		c.logger.Debug(msg, fields...)
	default:
		c.logger.Info(msg, fields...)
	}
}
