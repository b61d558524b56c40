package httpserver

import (
	"errors"
	"net/http"

	"github.com/Skotchmaster/storefront/pkg/apiclient"
)

// upstreamStatus maps a marketplace API failure onto a local status: client
// errors pass through, everything else is a bad gateway.
func upstreamStatus(err error) int {
	if s := apiclient.StatusOf(err); s >= 400 && s < 500 {
		return s
	}
	return http.StatusBadGateway
}

func upstreamMessage(err error) string {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return "upstream error"
}
