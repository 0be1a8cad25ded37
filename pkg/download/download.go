package download

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/hashicorp/go-getter"
	"github.com/samber/oops"
)

// Archive downloads a reference-volume archive from src into dst, unpacking
// it when the URL points at an archive format go-getter understands.
// Reference volumes are published as plain archive URLs, so only the HTTP
// getters are enabled.
func Archive(ctx context.Context, src, dst string) error {
	slog.Info("Downloading reference volume...", slog.String("src", src))
	errBuilder := oops.Code("download_error").In("download").With("src", src).With("dst", dst)

	u, err := url.Parse(src)
	if err != nil {
		return errBuilder.Wrapf(err, "failed to parse the source URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errBuilder.Errorf("unsupported source scheme: %q", u.Scheme)
	}

	// Build the client
	client := &getter.Client{
		Ctx: ctx,
		Src: src,
		Dst: dst,
		Getters: map[string]getter.Getter{
			"http":  new(getter.HttpGetter),
			"https": new(getter.HttpGetter),
		},
		Mode: getter.ClientModeAny,
	}

	if err = client.Get(); err != nil {
		return errBuilder.Wrapf(err, "download error")
	}

	return nil
}
