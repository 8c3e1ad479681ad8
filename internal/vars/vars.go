// Package vars holds build metadata set through -ldflags "-X".
package vars

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// License of the project
const License = "AGPL-3.0"

var (
	// Name of the project
	Name = "Srvdash"

	// Version is the git tag of the build
	Version = "dev"

	// Commit is the git SHA of the build
	Commit = "unknown"

	// URL of the repository
	URL = "https://github.com/woozymasta/srvdash"

	// linker inputs, parsed in init
	revision  string
	buildTime string
)

// BuildInfo is served by the version endpoint.
type BuildInfo struct {
	Built    time.Time `json:"built"`
	Name     string    `json:"name"`
	Version  string    `json:"version"`
	Commit   string    `json:"commit"`
	Go       string    `json:"go"`
	URL      string    `json:"url"`
	License  string    `json:"license"`
	Revision int       `json:"revision,omitempty"`
}

var info BuildInfo

func init() {
	info = BuildInfo{Built: time.Unix(0, 0).UTC()}
	if n, err := strconv.Atoi(revision); err == nil {
		info.Revision = n
	}
	if t, err := time.Parse(time.RFC3339, buildTime); err == nil {
		info.Built = t.UTC()
	}
}

// Info returns the build metadata.
func Info() BuildInfo {
	bi := info
	bi.Name = Name
	bi.Version = Version
	bi.Commit = shortSHA(Commit)
	bi.Go = runtime.Version()
	bi.URL = URL
	bi.License = License
	return bi
}

// Print writes the build metadata to stdout.
func Print() {
	Fprint(os.Stdout)
}

// Fprint writes the build metadata to w, one field per line.
func Fprint(w io.Writer) {
	bi := Info()
	_, _ = fmt.Fprintf(w, "%s %s (%s, rev %d)\nbuilt %s with %s\n%s, %s\n",
		bi.Name, bi.Version, bi.Commit, bi.Revision,
		bi.Built.Format(time.RFC3339), bi.Go, bi.URL, bi.License)
}

// UserAgent returns the User-Agent sent on outgoing HTTP requests.
func UserAgent() string {
	return fmt.Sprintf("%s/%s (+%s)", strings.ToLower(Name), Version, URL)
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
