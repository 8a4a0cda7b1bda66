package gcp

import (
	"strings"

	"google.golang.org/api/option"
)

// credentialOptions turns a configured key into client options. Inline JSON
// is recognised by its leading brace; anything else is a key file path.
func credentialOptions(creds string) []option.ClientOption {
	creds = strings.TrimSpace(creds)
	switch {
	case creds == "":
		return nil
	case strings.HasPrefix(creds, "{"):
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	default:
		return []option.ClientOption{option.WithCredentialsFile(creds)}
	}
}
