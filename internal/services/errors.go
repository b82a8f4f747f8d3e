package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAPI marks failures talking to an external rating-metadata provider:
	// transport errors, unexpected status codes, undecodable payloads.
	ErrAPI = errors.New("provider api error")
	// ErrAuthentication marks a rejected provider login.
	ErrAuthentication = errors.New("provider authentication failed")
	// ErrDataset marks a failure to download or parse the rating dataset.
	ErrDataset = errors.New("rating dataset unavailable")
	// ErrCatalog marks failures reading or writing the local media catalog.
	ErrCatalog = errors.New("catalog error")
	// ErrConfiguration marks invalid or incomplete configuration.
	ErrConfiguration = errors.New("configuration error")
	// ErrProviderDisabled is returned when an item needs a provider that is
	// switched off by capabilities or has no credentials.
	ErrProviderDisabled = errors.New("provider disabled")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrAPI
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsRetryable reports whether err should defer the remaining work to the next
// scheduled batch rather than terminate the process.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrAPI) || errors.Is(err, ErrAuthentication) || errors.Is(err, ErrDataset)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
