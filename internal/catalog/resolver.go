package catalog

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/veranemoloko/vision-downloader/internal/domain"
)

// ChecksumSuffix is appended to archive files to address their SHA-256 sidecar.
const ChecksumSuffix = ".CHECKSUM"

// Location is where a key lives remotely and locally.
type Location struct {
	RemoteURL   string
	LocalPath   string
	ChecksumURL string
}

// Resolver maps fetch keys to remote URLs and local paths. It holds no mutable state.
type Resolver struct {
	baseURL string
	root    string
}

// NewResolver returns a resolver rooted at baseURL for remote files and root for local files.
func NewResolver(baseURL, root string) (*Resolver, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", baseURL)
	}
	return &Resolver{
		baseURL: strings.TrimRight(baseURL, "/") + "/",
		root:    filepath.Clean(root),
	}, nil
}

// Resolve computes the remote URL, local path and checksum URL for key.
func (r *Resolver) Resolve(key domain.FetchKey) Location {
	remote := r.baseURL + RemotePath(key)
	return Location{
		RemoteURL:   remote,
		LocalPath:   r.LocalPath(key),
		ChecksumURL: remote + ChecksumSuffix,
	}
}

// RemotePath is the archive path of key relative to the base URL.
func RemotePath(key domain.FetchKey) string {
	dt, _ := Lookup(key.DataType)
	segment := dt.Segment
	if segment == "" {
		segment = key.DataType
	}

	parts := []string{"data"}
	if key.Market.IsFutures() {
		parts = append(parts, "futures", string(key.Market))
	} else {
		parts = append(parts, string(key.Market))
	}
	parts = append(parts, string(key.Granularity), segment, key.Symbol)

	var file string
	if key.Interval != "" {
		parts = append(parts, key.Interval)
		file = fmt.Sprintf("%s-%s-%s.zip", key.Symbol, key.Interval, key.Period)
	} else {
		file = fmt.Sprintf("%s-%s-%s.zip", key.Symbol, segment, key.Period)
	}
	parts = append(parts, file)

	return path.Join(parts...)
}

// LocalPath is the destination of key under the output root:
// {root}/{market}/{granularity}/{data-type}/{symbol}/[{interval}/]{symbol}-{data-type}[-{interval}]-{period}.zip
func (r *Resolver) LocalPath(key domain.FetchKey) string {
	parts := []string{r.root, string(key.Market), string(key.Granularity), key.DataType, key.Symbol}

	name := key.Symbol + "-" + key.DataType
	if key.Interval != "" {
		parts = append(parts, key.Interval)
		name += "-" + key.Interval
	}
	name += "-" + key.Period.String() + ".zip"

	return filepath.Join(append(parts, name)...)
}

// SidecarPath is where a downloaded checksum sidecar is stored next to its file.
func SidecarPath(localPath string) string {
	return localPath + ChecksumSuffix
}
