package dispatch

import (
	"errors"
	"fmt"
	"strings"
)

// categories maps upstream error codes to short display categories.
var categories = map[string]string{
	"ClientError.NotFound":                            "Directory Not Found",
	"EndpointPermissionDenied":                        "Endpoint Permission Denied",
	"ClientError.PermissionDenied":                    "Endpoint Permission Denied",
	"ClientError.ActivationRequired":                  "Endpoint Activation Required",
	"ExternalError.DirListingFailed.NotDirectory":     "Not a Directory",
	"ServiceUnavailable":                              "Server Under Maintenance",
	"ExternalError.DirListingFailed.GCDisconnected":   "Globus Connect Not Running",
	"ExternalError.DirListingFailed":                  "Directory Listing Failed",
	"ExternalError.DirListingFailed.PermissionDenied": "Permission Denied",
	"ExternalError.DirListingFailed.ConnectFailed":    "Connection Failed",
}

// Category returns the display category for an upstream error code.
// Unlisted sub-codes of a listed family (e.g. ExternalError.DirListingFailed.X)
// fall back to the family; anything else is returned unchanged.
func Category(code string) string {
	for c := code; c != ""; {
		if cat, ok := categories[c]; ok {
			return cat
		}

		i := strings.LastIndexByte(c, '.')
		if i < 0 {
			break
		}

		c = c[:i]

		// ClientError and ExternalError on their own are too broad to name.
		if !strings.Contains(c, ".") {
			break
		}
	}

	return code
}

// Describe formats a dispatcher error for display. API errors are shown by
// category; everything else is shown as is.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err.Error()
	}

	if apiErr.Code == "" {
		return fmt.Sprintf("HTTP %d: %s", apiErr.HTTPStatus, apiErr.Message)
	}

	cat := Category(apiErr.Code)
	if cat == apiErr.Code {
		return fmt.Sprintf("%s: %s", apiErr.Code, apiErr.Message)
	}

	return fmt.Sprintf("%s (%s): %s", cat, apiErr.Code, apiErr.Message)
}
