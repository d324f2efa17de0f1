package challenge

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/uafrontender/newnew-sub010/api"
)

// Default verification endpoints.
const (
	DefaultInvisiblePath = "/api/recaptcha/v3"
	DefaultVisiblePath   = "/api/recaptcha/v2"
)

type verifyRequest struct {
	RecaptchaToken string `json:"recaptchaToken"`
}

type invisibleResponse struct {
	Success    bool     `json:"success"`
	Score      *float64 `json:"score,omitempty"`
	Errors     []string `json:"errors,omitempty"`
	ErrorCodes []string `json:"error-codes,omitempty"`
}

// HTTPVerifier implements Verifier against the backend verification endpoints.
type HTTPVerifier struct {
	// Log is optional.
	Log *zap.Logger

	client        *api.Client
	invisiblePath string
	visiblePath   string
}

// NewHTTPVerifier builds a verifier; empty paths fall back to the defaults.
func NewHTTPVerifier(client *api.Client, invisiblePath, visiblePath string) *HTTPVerifier {
	if invisiblePath == "" {
		invisiblePath = DefaultInvisiblePath
	}
	if visiblePath == "" {
		visiblePath = DefaultVisiblePath
	}
	return &HTTPVerifier{client: client, invisiblePath: invisiblePath, visiblePath: visiblePath}
}

// VerifyInvisible posts an invisible token and returns the score verdict.
func (v *HTTPVerifier) VerifyInvisible(ctx context.Context, token string) (Result, error) {
	if token == "" {
		return Result{}, ErrEmptyToken
	}
	if v.client == nil {
		return Result{}, api.ErrNilClient
	}

	resp, err := v.client.Resty().R().
		SetContext(ctx).
		SetBody(verifyRequest{RecaptchaToken: token}).
		Post(v.invisiblePath)
	if err != nil {
		return Result{}, err
	}
	if resp.IsError() {
		return Result{}, &api.RequestError{Path: v.invisiblePath, StatusCode: resp.StatusCode(), Message: string(resp.Body())}
	}

	var body invisibleResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return Result{}, &api.RequestError{Path: v.invisiblePath, StatusCode: resp.StatusCode(), Message: "malformed response body", Err: err}
	}

	codes := append([]string(nil), body.ErrorCodes...)
	codes = append(codes, body.Errors...)
	return Result{Passed: body.Success, Score: body.Score, ErrorCodes: codes}, nil
}

// VerifyVisible posts a visible-widget token. A 422 answer is a rejection and
// is reported as (false, *FailedError).
func (v *HTTPVerifier) VerifyVisible(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, ErrEmptyToken
	}
	if v.client == nil {
		return false, api.ErrNilClient
	}

	resp, err := v.client.Resty().R().
		SetContext(ctx).
		SetBody(verifyRequest{RecaptchaToken: token}).
		Post(v.visiblePath)
	if err != nil {
		return false, err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		return true, nil
	case http.StatusUnprocessableEntity:
		var body struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(resp.Body(), &body); err != nil {
			v.logger().Warn("undecodable visible challenge rejection",
				zap.String("path", v.visiblePath), zap.ByteString("body", resp.Body()), zap.Error(err))
		}
		return false, &FailedError{Message: body.Message}
	default:
		return false, &api.RequestError{Path: v.visiblePath, StatusCode: resp.StatusCode(), Message: string(resp.Body())}
	}
}

func (v *HTTPVerifier) logger() *zap.Logger {
	if v.Log == nil {
		return zap.NewNop()
	}
	return v.Log
}
