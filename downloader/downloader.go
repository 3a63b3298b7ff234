// Package downloader dispatches a found requirement's URL to the HTTP
// pool or a VCS checkout, and hands the resulting bytes to the artifact
// index.
package downloader

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"github.com/quay/zlog"

	"github.com/curdling/curdling"
	"github.com/curdling/curdling/httpfetch"
	"github.com/curdling/curdling/pkg/wheelname"
)

var tracer = otel.Tracer("github.com/curdling/curdling/downloader")

// ArtifactIndex is the narrow contract the Downloader hands retrieved
// bytes to.
type ArtifactIndex interface {
	FromData(filename string, data []byte) (storedName string, err error)
}

// Downloader retrieves a distribution's bytes and submits them to an
// ArtifactIndex.
type Downloader struct {
	HTTP  *httpfetch.Pool
	Index ArtifactIndex
}

// Result is the record the Downloader produces: the stored artifact name
// and which data slot it belongs in.
type Result struct {
	StoredName string
	Field      curdling.DataField // FieldTarball or FieldWheel for HTTP; FieldDirectory for VCS
}

// Handle implements §4.7: dispatch by URL scheme, retrieve bytes, and
// submit them to the index. locatorURL is the base URL of the locator
// that produced rawURL, if any; it is used for credential propagation.
func (d *Downloader) Handle(ctx context.Context, req, rawURL, locatorURL string) (Result, error) {
	ctx, span := tracer.Start(ctx, "Downloader.Handle", trace.WithAttributes(attribute.String("requirement", req)))
	defer span.End()

	switch {
	case strings.HasPrefix(rawURL, "http://"), strings.HasPrefix(rawURL, "https://"):
		return d.downloadHTTP(ctx, rawURL, locatorURL)
	case strings.HasPrefix(rawURL, "git+"):
		return d.downloadVCS(ctx, "git", strings.TrimPrefix(rawURL, "git+"))
	case strings.HasPrefix(rawURL, "hg+"):
		return d.downloadVCS(ctx, "hg", strings.TrimPrefix(rawURL, "hg+"))
	case strings.HasPrefix(rawURL, "svn+"):
		return d.downloadVCS(ctx, "svn", strings.TrimPrefix(rawURL, "svn+"))
	default:
		return Result{}, &curdling.Error{Op: "Downloader.Handle", Kind: curdling.ErrUnknownURL,
			Message: fmt.Sprintf("unrecognized URL scheme: %q", rawURL)}
	}
}

func (d *Downloader) downloadHTTP(ctx context.Context, rawURL, locatorURL string) (Result, error) {
	effective := rawURL
	if locatorURL != "" {
		effective = httpfetch.PropagateCredentials(locatorURL, rawURL)
	}

	res, err := d.HTTP.Get(ctx, effective, nil)
	if err != nil {
		return Result{}, err
	}
	defer res.Response.Body.Close()

	if res.Response.StatusCode != http.StatusOK {
		return Result{}, &curdling.Error{Op: "Downloader.downloadHTTP", Kind: curdling.ErrReportable,
			Message: fmt.Sprintf("download failed: %d %s", res.Response.StatusCode, res.Response.Status)}
	}

	body, err := io.ReadAll(res.Response.Body)
	if err != nil {
		return Result{}, &curdling.Error{Op: "Downloader.downloadHTTP", Kind: curdling.ErrConnection, Inner: err}
	}

	filename := filenameFor(res.Response, res.FinalURL, rawURL)
	stored, err := d.Index.FromData(filename, body)
	if err != nil {
		return Result{}, &curdling.Error{Op: "Downloader.downloadHTTP", Kind: curdling.ErrInternal, Inner: err}
	}

	field := curdling.FieldTarball
	if wheelname.IsWheel(filename) {
		field = curdling.FieldWheel
	}
	return Result{StoredName: stored, Field: field}, nil
}

// filenameFor implements the three-step filename derivation priority:
// Content-Disposition, then the basename of the final URL, then the
// basename of the original URL.
func filenameFor(resp *http.Response, finalURL, originalURL string) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := params["filename"]; name != "" {
				return strings.Trim(name, `"`)
			}
		}
	}
	if name := basename(finalURL); name != "" {
		return name
	}
	return basename(originalURL)
}

func basename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return path.Base(u.Path)
}

var vcsCheckoutCmd = map[string][]string{
	"git": {"reset", "--hard"},
	"hg":  {"update", "-q"},
	"svn": {"co", "-r"},
}

var vcsCloneCmd = map[string][]string{
	"git": {"clone"},
	"hg":  {"clone"},
	"svn": {"co", "-q"},
}

// downloadVCS checks out inner (a scheme-stripped VCS URL, optionally
// carrying "@revision") into a fresh temporary directory and submits the
// directory path to the index as its directory record.
func (d *Downloader) downloadVCS(ctx context.Context, vcs, inner string) (Result, error) {
	repoURL, revision, _ := strings.Cut(inner, "@")

	dir, err := os.MkdirTemp("", "curdling-"+vcs+"-")
	if err != nil {
		return Result{}, &curdling.Error{Op: "Downloader.downloadVCS", Kind: curdling.ErrInternal, Inner: err}
	}

	cloneArgs := append(append([]string{}, vcsCloneCmd[vcs]...), repoURL, dir)
	if err := runVCS(ctx, vcs, cloneArgs...); err != nil {
		return Result{}, err
	}

	if revision != "" {
		checkout := vcsCheckoutCmd[vcs]
		var args []string
		switch vcs {
		case "svn":
			args = append([]string{}, checkout...)
			args = append(args, revision, repoURL, dir)
		default:
			args = append([]string{}, checkout...)
			args = append(args, revision)
		}
		if err := runVCSIn(ctx, dir, vcs, args...); err != nil {
			return Result{}, err
		}
	}

	stored, err := d.Index.FromData(path.Base(repoURL), []byte(dir))
	if err != nil {
		return Result{}, &curdling.Error{Op: "Downloader.downloadVCS", Kind: curdling.ErrInternal, Inner: err}
	}
	return Result{StoredName: stored, Field: curdling.FieldDirectory}, nil
}

func runVCS(ctx context.Context, name string, args ...string) error {
	return runVCSIn(ctx, "", name, args...)
}

func runVCSIn(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		zlog.Debug(ctx).Str("command", name).Strs("args", args).Str("output", string(out)).Msg("vcs command failed")
		return &curdling.Error{Op: "Downloader.downloadVCS", Kind: curdling.ErrReportable,
			Message: fmt.Sprintf("%s %v failed: %v", name, args, err)}
	}
	return nil
}
