package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/loomdrop/backend/internal/config"
	"github.com/loomdrop/backend/internal/logging"
	"github.com/loomdrop/backend/internal/retrieval"
	"github.com/loomdrop/backend/internal/storage"
)

const shareLinkMarker = "loom.com/share/"

var errNotShareLink = errors.New("Please enter a valid Loom URL (must contain loom.com/share/)")

type fetchOptions struct {
	dir       string
	userAgent string
	apiURL    string
}

func newFetchCommand() *cobra.Command {
	var opts fetchOptions

	cmd := &cobra.Command{
		Use:   "fetch <share-url>",
		Short: "Download or share a Loom video through a running API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			opts.apply(&cfg)

			ctx := logging.WithLogger(cmd.Context(), logging.New(os.Stderr, cfg.SlogLevel()))
			client, err := newRetrievalClient(ctx, cfg)
			if err != nil {
				return err
			}

			message, err := fetch(ctx, client, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), message)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.dir, "dir", "d", "", "directory to save videos into (default LOOMDROP_OUTPUT_DIR)")
	cmd.Flags().StringVar(&opts.userAgent, "user-agent", "", "user agent used to pick delivery methods (default LOOMDROP_USER_AGENT)")
	cmd.Flags().StringVar(&opts.apiURL, "api", "", "download API base URL (default LOOMDROP_API_URL)")
	return cmd
}

func (o fetchOptions) apply(cfg *config.Config) {
	if o.dir != "" {
		cfg.OutputDir = o.dir
	}
	if o.userAgent != "" {
		cfg.UserAgent = o.userAgent
	}
	if o.apiURL != "" {
		cfg.APIURL = o.apiURL
	}
}

func newRetrievalClient(ctx context.Context, cfg config.Config) (*retrieval.Client, error) {
	client := retrieval.NewClient(cfg.APIURL, nil)
	client.Devices = retrieval.UserAgentDetector{UserAgent: cfg.UserAgent}
	client.Saver = retrieval.FileSaver{Dir: cfg.OutputDir}
	client.Opener = retrieval.BrowserOpener{}

	if cfg.ObjectStore.Enabled() {
		store, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return nil, err
		}
		client.Sharer = retrieval.ObjectSharer{Store: store, Prefix: "shares"}
	}
	return client, nil
}

func fetch(ctx context.Context, client *retrieval.Client, shareURL string) (string, error) {
	shareURL = strings.TrimSpace(shareURL)
	if shareURL != "" && !strings.Contains(shareURL, shareLinkMarker) {
		return "", errNotShareLink
	}

	result, err := client.Retrieve(ctx, shareURL)
	if err != nil {
		return "", err
	}
	return describeResult(result), nil
}

func describeResult(r retrieval.Result) string {
	switch r.Method {
	case retrieval.MethodShare:
		return fmt.Sprintf("Video ready to share: %s (%s)", r.DisplayName(), r.Location)
	case retrieval.MethodOpen:
		return fmt.Sprintf("Video opened for download: %s (%s)", r.DisplayName(), r.Location)
	default:
		return fmt.Sprintf("Video downloaded successfully: %s (%s)", r.DisplayName(), humanize.Bytes(uint64(r.Size)))
	}
}
