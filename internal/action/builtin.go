package action

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Print writes "<folder>: <text>" to Out.
type Print struct {
	Out io.Writer
}

func (p *Print) Run(_ context.Context, opts Options, c *Context) error {
	text := ""
	if v, ok := opts["text"]; ok && v != nil {
		text = fmt.Sprint(v)
	}
	_, _ = fmt.Fprintf(p.Out, "%s: %s\n", c.Folder, text)
	return nil
}

// Download fetches options.url and stores the body in the archive under the
// folder at options.target.
type Download struct {
	Fetcher Fetcher
}

func (d *Download) Run(ctx context.Context, opts Options, c *Context) error {
	rawURL, err := opts.String(c, "download", "url", true)
	if err != nil {
		return err
	}
	target, err := opts.String(c, "download", "target", false)
	if err != nil {
		return err
	}

	dest, err := TargetPath(c.Folder, rawURL, target)
	if err != nil {
		return &OptionsError{Folder: c.Folder, Action: "download", Option: "url", Reason: err.Error()}
	}

	body, err := d.Fetcher.Get(ctx, rawURL)
	if err != nil {
		return err
	}

	hclog.FromContext(ctx).Info("downloaded file", "url", rawURL, "path", dest, "bytes", len(body))
	c.Sink.Put(dest, body)
	return nil
}

// TargetPath computes the archive path for a download. A target ending in
// "/" (or an empty target) names a directory and receives the last segment
// of the URL path, without query or fragment.
func TargetPath(folder, rawURL, target string) (string, error) {
	full := folder + "/" + target
	if !strings.HasSuffix(full, "/") {
		return full, nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("cannot parse: %w", err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return "", fmt.Errorf("has no file name to use for directory target %q", target)
	}
	return full + name, nil
}
