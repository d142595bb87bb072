// Command upload sends a pre-recorded video through the same session and upload
// coordinator a live capture uses.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/romariotrain/reelwork/internal/capture"
	"github.com/romariotrain/reelwork/internal/config"
	"github.com/romariotrain/reelwork/internal/log"
	"github.com/romariotrain/reelwork/internal/upload"
)

type options struct {
	candidateID string
	apiBaseURL  string
	mimeType    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "upload <file>",
		Short:         "Upload a video file as a candidate intro",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ref, err := uploadFile(ctx, args[0], opts)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ref)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.candidateID, "candidate", "", "candidate id to attach to the upload")
	cmd.Flags().StringVar(&opts.apiBaseURL, "api", "", "API base url (default $API_BASE_URL or http://localhost:8081)")
	cmd.Flags().StringVar(&opts.mimeType, "type", "", "declared MIME type (default: detected from content)")
	return cmd
}

func uploadFile(ctx context.Context, path string, opts options) (upload.AssetRef, error) {
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	log.Configure(log.Config{Level: cfg.LogLevel, Output: os.Stderr, Service: "upload"})
	logger := log.WithComponent("upload_cli")

	declared := opts.mimeType
	if declared == "" {
		mt, err := mimetype.DetectFile(path)
		if err != nil {
			return "", fmt.Errorf("detect type: %w", err)
		}
		declared = baseType(mt.String())
	}

	file, err := capture.FileFromPath(path, declared)
	if err != nil {
		return "", err
	}

	baseURL := opts.apiBaseURL
	if baseURL == "" {
		baseURL = cfg.Upload.APIBaseURL
	}
	coord, err := upload.New(upload.Config{
		BaseURL:           baseURL,
		CredentialTimeout: cfg.Upload.CredentialTimeout,
		TransferTimeout:   cfg.Upload.TransferTimeout,
		RegisterTimeout:   cfg.Upload.RegisterTimeout,
		Logger:            logger,
	})
	if err != nil {
		return "", err
	}

	session := capture.NewSession(capture.Config{
		Uploader:    coord,
		CandidateID: opts.candidateID,
		Logger:      logger,
	})
	defer session.Close()

	// session.Snapshot().Error is the message a candidate would see
	if err := session.SelectFile(file); err != nil {
		return "", errors.New(session.Snapshot().Error)
	}
	ref, err := session.Upload(ctx)
	if err != nil {
		if msg := session.Snapshot().Error; msg != "" {
			return "", errors.New(msg)
		}
		return "", err
	}
	return ref, nil
}

// baseType drops MIME parameters such as "; charset=utf-8".
func baseType(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return strings.TrimSpace(mime)
}
