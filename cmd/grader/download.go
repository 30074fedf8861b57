package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uchokoro/KodeCamp-task-grader/internal/config"
	"github.com/uchokoro/KodeCamp-task-grader/internal/submission"
)

var (
	downloadDir      string
	downloadName     string
	downloadFormat   string
	downloadUsing    string
	downloadShowText bool
)

func init() {
	rootCmd.AddCommand(downloadCmd, downloadersCmd)

	flags := downloadCmd.Flags()
	flags.StringVar(&downloadDir, "dir", "", "Destination directory (defaults to DOWNLOAD_DIR)")
	flags.StringVar(&downloadName, "name", "", "File name without extension (defaults to the document id)")
	flags.StringVar(&downloadFormat, "format", submission.DefaultFormat, "Export format, e.g. txt, html, pdf")
	flags.StringVar(&downloadUsing, "downloader", "", "Downloader key (defaults to the first that accepts the URL)")
	flags.BoolVar(&downloadShowText, "text", false, "Print the extracted submission text")
}

var downloadCmd = &cobra.Command{
	Use:   "download <url>",
	Short: "Download a submission document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDownload,
}

var downloadersCmd = &cobra.Command{
	Use:   "downloaders",
	Short: "List registered submission downloaders",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		registry := submission.DefaultRegistry()
		descriptions := registry.List()

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), descriptions)
		}
		tw := newTable(cmd.OutOrStdout(), "KEY", "DESCRIPTION")
		for _, key := range registry.Keys() {
			fmt.Fprintf(tw, "%s\t%s\n", key, descriptions[key])
		}
		return tw.Flush()
	},
}

func runDownload(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	app := NewApp(cfg, newLogger(true))
	dir := downloadDir
	if dir == "" {
		dir = cfg.DownloadDir
	}

	var downloader submission.Downloader
	if downloadUsing != "" {
		downloader, err = app.registry.Get(downloadUsing, app.downloads)
	} else {
		_, downloader, err = app.registry.ForURL(args[0], app.downloads)
	}
	if err != nil {
		return err
	}

	path, err := downloader.DownloadAs(cmd.Context(), args[0], dir, downloadName, downloadFormat)
	if err != nil {
		return err
	}

	if !downloadShowText {
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	}

	text, err := submission.ReadText(path)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}
