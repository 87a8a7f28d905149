package publisher

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"
)

var (
	ErrInvalidToken  = errors.New("publish token is invalid or expired")
	ErrRepoNotFound  = errors.New("config repository not found or not accessible")
	ErrNoWriteAccess = errors.New("publish token has no write access to the config repository")
	ErrConflict      = errors.New("remote config changed since it was read, refresh and retry")
	ErrNoChanges     = errors.New("no changes to publish")
)

// APIError is a GitHub error answer that maps to no sentinel.
type APIError struct {
	Status  int
	Message string
	Details []string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("github api returned %d", e.Status)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if len(e.Details) > 0 {
		msg += " (" + strings.Join(e.Details, "; ") + ")"
	}
	return msg
}

// githubError is the error body GitHub sends.
type githubError struct {
	Message string `json:"message"`
	Errors  []struct {
		Message string `json:"message"`
		Code    string `json:"code"`
		Field   string `json:"field"`
	} `json:"errors"`
}

func handleError(resp *resty.Response) error {
	switch resp.StatusCode() {
	case http.StatusUnauthorized:
		return ErrInvalidToken
	case http.StatusNotFound:
		return ErrRepoNotFound
	case http.StatusConflict:
		return ErrConflict
	}

	apiErr := &APIError{Status: resp.StatusCode()}
	if e, ok := resp.Error().(*githubError); ok && e != nil {
		apiErr.Message = e.Message
		for _, d := range e.Errors {
			switch {
			case d.Message != "":
				apiErr.Details = append(apiErr.Details, d.Message)
			case d.Code != "":
				apiErr.Details = append(apiErr.Details, d.Field+" "+d.Code)
			}
		}
	}
	if resp.StatusCode() == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(apiErr.Error()), "sha") {
		return fmt.Errorf("%w: %s", ErrConflict, apiErr.Message)
	}
	if apiErr.Message == "" {
		apiErr.Message = resp.Status()
	}
	return apiErr
}
