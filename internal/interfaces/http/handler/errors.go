package handler

import (
	"context"
	stderrors "errors"

	"github.com/gin-gonic/gin"

	"blog-gen-ai-api/internal/application/article"
	"blog-gen-ai-api/internal/interfaces/http/dto"
	"blog-gen-ai-api/internal/workflow/cancel"
	"blog-gen-ai-api/internal/workflow/completion"
	"blog-gen-ai-api/internal/workflow/validate"
	"blog-gen-ai-api/pkg/errors"
	"blog-gen-ai-api/pkg/logger"
)

// toAppError 把领域错误映射为 AppError；取消不经过这里
func toAppError(err error) *errors.AppError {
	if errors.IsAppError(err) {
		return errors.AsAppError(err)
	}

	var (
		valErr    *validate.ValidationError
		lengthErr *article.LengthViolationError
		compErr   *completion.Error
	)
	switch {
	case stderrors.Is(err, article.ErrSessionNotFound):
		return errors.ErrSessionNotFound
	case stderrors.Is(err, article.ErrSectionIndex):
		return errors.ErrSectionNotFound
	case stderrors.Is(err, article.ErrJobNotFound):
		return errors.ErrJobNotFound
	case stderrors.Is(err, article.ErrModeSwitching), stderrors.Is(err, article.ErrBatchRunning),
		stderrors.Is(err, article.ErrSectionBusy):
		return errors.ErrSectionBusy.WithDetail(err.Error())
	case stderrors.Is(err, article.ErrPriorSectionsIncomplete):
		return errors.ErrConflict.WithDetail(err.Error())
	case stderrors.Is(err, article.ErrInvalidMode), stderrors.Is(err, article.ErrInvalidInput):
		return errors.ErrInvalidParam.WithDetail(err.Error())
	case stderrors.As(err, &valErr):
		return errors.Wrap(err, errors.CodeValidationFailed, "model response failed validation").WithDetail(valErr.Error())
	case stderrors.As(err, &lengthErr):
		return errors.Wrap(err, errors.CodeLengthOutOfRange, "generated text is outside the length window").WithDetail(lengthErr.Error())
	case stderrors.As(err, &compErr):
		switch compErr.Kind {
		case completion.KindRateLimited:
			return errors.Wrap(err, errors.CodeRateLimited, "completion service is rate limited")
		case completion.KindMalformed:
			return errors.Wrap(err, errors.CodeMalformedResponse, "completion service returned a malformed response")
		case completion.KindFatal:
			return errors.Wrap(err, errors.CodeLLMProviderError, "completion service rejected the request")
		default:
			return errors.Wrap(err, errors.CodeCompletionUnavailable, "completion service unavailable")
		}
	default:
		return errors.ErrInternalError.WithError(err)
	}
}

// isCancelled 调用方取消，或客户端断开导致请求上下文结束
func isCancelled(err error) bool {
	return cancel.IsCancelled(err) || stderrors.Is(err, context.Canceled)
}

// respondError 统一错误出口
func respondError(c *gin.Context, err error) {
	if isCancelled(err) {
		dto.Cancelled(c)
		return
	}

	appErr := toAppError(err)
	if appErr.HTTPStatus >= 500 {
		logger.Error(c.Request.Context(), "request failed", err, "code", string(appErr.Code))
	} else {
		logger.Warn(c.Request.Context(), "request rejected", "code", string(appErr.Code), "error", err.Error())
	}

	var detail *dto.ErrorDetail
	if appErr.Detail != "" || appErr.Code != "" {
		detail = &dto.ErrorDetail{ErrorCode: string(appErr.Code), Details: appErr.Detail}
	}
	dto.ErrorWithDetail(c, appErr.HTTPStatus, appErr.Message, detail)
}

// requestToken 令牌随请求上下文结束而取消
func requestToken(ctx context.Context) (*cancel.Token, func()) {
	token := cancel.New(nil)
	stop := context.AfterFunc(ctx, token.Cancel)
	return token, func() { stop() }
}
