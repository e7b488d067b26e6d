package reports

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// timestampLayout is yyyyMMddHHmmss.
const timestampLayout = "20060102150405"

// DownloadPath is the HTTP route artifacts are served from.
const DownloadPath = "/api/reports/download/"

// ObjectName builds the artifact name {account}_{yyyyMMddHHmmss}_{suffix}.
// The random suffix keeps two generations within the same second apart.
func ObjectName(account Account, at time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s_%s_%s", account, at.UTC().Format(timestampLayout), suffix)
}

// LinkBuilder turns an object name into the link handed back to clients.
type LinkBuilder struct {
	baseURL string
}

// NewLinkBuilder creates a LinkBuilder rooted at the public base URL of the API.
func NewLinkBuilder(baseURL string) LinkBuilder {
	return LinkBuilder{baseURL: strings.TrimRight(baseURL, "/")}
}

// Link returns the download URL for name.
func (b LinkBuilder) Link(name string) string {
	return b.baseURL + DownloadPath + url.PathEscape(name)
}
