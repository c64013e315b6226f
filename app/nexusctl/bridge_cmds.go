package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yoockh/nexusbot/internal/storage"
	"github.com/yoockh/nexusbot/internal/widget"
)

func newRenderBridgeCmd(load configLoader) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "render-bridge",
		Short: "Render widget.js for APP_ORIGIN",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			r, err := widget.NewRenderer(cfg.AppOrigin)
			if err != nil {
				return err
			}
			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(r.Bridge())
				return err
			}
			return os.WriteFile(out, r.Bridge(), 0o644)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func newPublishBridgeCmd(load configLoader) *cobra.Command {
	var (
		bucket string
		prefix string
	)

	cmd := &cobra.Command{
		Use:   "publish-bridge",
		Short: "Upload widget.js to a public GCS bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if bucket == "" {
				bucket = cfg.BridgeBucket
			}
			if bucket == "" {
				return errors.New("no bucket: pass --bucket or set BRIDGE_BUCKET")
			}

			r, err := widget.NewRenderer(cfg.AppOrigin)
			if err != nil {
				return err
			}
			up, err := storage.NewGCSUploader(cmd.Context(), bucket)
			if err != nil {
				return fmt.Errorf("gcs client: %w", err)
			}
			defer up.Close()

			url, err := storage.PublishBridge(cmd.Context(), up, prefix, r.Bridge())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
	cmd.Flags().StringVar(&bucket, "bucket", "", "target bucket (default BRIDGE_BUCKET)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "object prefix, e.g. a release tag")
	return cmd
}
