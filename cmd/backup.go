package cmd

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joescharf/projectops/internal/backup"
	"github.com/joescharf/projectops/internal/output"
)

var backupOutput string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Back up projects to the remote archive",
	Long: `Export, list, upload, download and delete project backups held in the
configured Google Drive archive.`,
}

var backupExportCmd = &cobra.Command{
	Use:   "export <project>",
	Short: "Export a project snapshot to the archive root folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return backupExportRun(args[0])
	},
}

var backupListCmd = &cobra.Command{
	Use:     "list <project>",
	Aliases: []string{"ls"},
	Short:   "List a project's backups, newest first",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return backupListRun(args[0])
	},
}

var backupUploadCmd = &cobra.Command{
	Use:   "upload <project> <file>",
	Short: "Upload a file into the project's backup folder",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return backupUploadRun(args[0], args[1])
	},
}

var backupDownloadCmd = &cobra.Command{
	Use:   "download <project> <file-id>",
	Short: "Download one of the project's backups",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return backupDownloadRun(args[0], args[1])
	},
}

var backupDeleteCmd = &cobra.Command{
	Use:     "delete <project> <file-id>",
	Aliases: []string{"rm"},
	Short:   "Permanently delete one of the project's backups",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return backupDeleteRun(args[0], args[1])
	},
}

func init() {
	backupDownloadCmd.Flags().StringVarP(&backupOutput, "output", "o", "", "Output path (default: the backup's name in the current directory)")

	backupCmd.AddCommand(backupExportCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupUploadCmd)
	backupCmd.AddCommand(backupDownloadCmd)
	backupCmd.AddCommand(backupDeleteCmd)
	rootCmd.AddCommand(backupCmd)
}

// backupTarget resolves the project reference and builds the backup service.
func backupTarget(ctx context.Context, projectRef string) (*backup.Service, string, string, error) {
	s, err := getStore()
	if err != nil {
		return nil, "", "", err
	}
	p, err := resolveProject(ctx, s, projectRef)
	if err != nil {
		return nil, "", "", err
	}
	svc, err := newBackupService(ctx)
	if err != nil {
		return nil, "", "", err
	}
	return svc, p.ID, p.Name, nil
}

func backupExportRun(projectRef string) error {
	ctx := context.Background()
	svc, projectID, name, err := backupTarget(ctx, projectRef)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would export %s to the archive", name)
		return nil
	}

	res, err := svc.QuickExport(ctx, projectID)
	if err != nil {
		return err
	}
	ui.Success("Exported %s as %s", output.Cyan(name), res.FileName)
	ui.Info("%d issues (%d open), %d team members, %d goals (%d done)",
		res.Summary.TotalIssues, res.Summary.OpenIssues, res.Summary.TotalTeamMembers,
		res.Summary.TotalGoals, res.Summary.CompletedGoals)
	if res.WebViewLink != "" {
		ui.Info("View: %s", res.WebViewLink)
	}
	return nil
}

func backupListRun(projectRef string) error {
	ctx := context.Background()
	svc, projectID, name, err := backupTarget(ctx, projectRef)
	if err != nil {
		return err
	}

	artifacts, err := svc.List(ctx, projectID)
	if err != nil {
		return err
	}
	if len(artifacts) == 0 {
		ui.Info("No backups for %s.", name)
		return nil
	}

	table := ui.Table([]string{"ID", "Name", "Created", "Size"})
	for _, a := range artifacts {
		table.Append([]string{
			a.ID,
			output.Cyan(a.Name),
			a.CreatedTime.Local().Format("2006-01-02 15:04"),
			output.HumanSize(a.Size),
		})
	}
	table.Render()
	return nil
}

func backupUploadRun(projectRef, path string) error {
	ctx := context.Background()
	svc, projectID, name, err := backupTarget(ctx, projectRef)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if dryRun {
		ui.DryRunMsg("Would upload %s to %s", path, name)
		return nil
	}

	mimeType := mime.TypeByExtension(filepath.Ext(path))
	a, err := svc.Upload(ctx, projectID, filepath.Base(path), mimeType, f)
	if err != nil {
		return err
	}
	ui.Success("Uploaded %s (%s)", output.Cyan(a.Name), a.ID)
	return nil
}

func backupDownloadRun(projectRef, fileID string) error {
	ctx := context.Background()
	svc, projectID, _, err := backupTarget(ctx, projectRef)
	if err != nil {
		return err
	}

	dl, err := svc.Download(ctx, projectID, fileID)
	if err != nil {
		return err
	}
	defer func() { _ = dl.Body.Close() }()

	dest := backupOutput
	if dest == "" {
		dest = filepath.Base(dl.Name)
	}

	if dryRun {
		ui.DryRunMsg("Would write %s to %s", dl.Name, dest)
		return nil
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	n, err := io.Copy(out, dl.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	ui.Success("Saved %s (%s)", dest, output.HumanSize(n))
	return nil
}

func backupDeleteRun(projectRef, fileID string) error {
	ctx := context.Background()
	svc, projectID, name, err := backupTarget(ctx, projectRef)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would delete backup %s of %s", fileID, name)
		return nil
	}

	if err := svc.Delete(ctx, projectID, fileID); err != nil {
		return err
	}
	ui.Success("Deleted backup %s", fileID)
	return nil
}
