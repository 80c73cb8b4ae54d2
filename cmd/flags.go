package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/kozaktomas/fusion-batch/internal/batch"
	"github.com/kozaktomas/fusion-batch/internal/facefusion"
	"github.com/kozaktomas/fusion-batch/internal/media"
	"github.com/kozaktomas/fusion-batch/internal/presets"
	"github.com/spf13/cobra"
)

// mustGetBool gets a bool flag value or panics if the flag doesn't exist.
// This is appropriate for flags defined in init() - errors indicate programming bugs.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetInt gets an int flag value or panics if the flag doesn't exist.
func mustGetInt(cmd *cobra.Command, name string) int {
	val, err := cmd.Flags().GetInt(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// mustGetString gets a string flag value or panics if the flag doesn't exist.
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

// addBatchFlags registers the folder, preset and cleanup flags of a batch
// command, with the defaults of kind.
func addBatchFlags(cmd *cobra.Command, kind batch.Kind) {
	def := batch.NewRequest(kind)
	f := cmd.Flags()
	f.String("files", def.FilesDir, "Folder with the files to process")
	if def.MainDir != "" {
		f.String("main", def.MainDir, "Folder with the face images")
	}
	f.String("output", def.OutputDir, "Folder receiving the results")
	f.String("preset", "", fmt.Sprintf("Preset name (default %q)", batch.DefaultPreset(kind)))
	f.String("on-error", string(facefusion.PolicyIgnore), "What to do when a FaceFusion command fails: ignore, skip or fail-fast")
	f.String("media", "", "Which files to take from the files folder: image, video or all (default depends on the command)")
	f.Bool("delete-source", def.DeleteSources, "Delete each input once all of its jobs succeeded")
	f.Bool("sweep", def.Sweep, "Delete every FaceFusion job after the batch")
	f.Bool("verify", false, "Skip images that cannot be decoded before creating any job")
	f.Bool("dry-run", false, "Print the planned jobs without running them")
}

// requestFromFlags builds the batch request of kind from the flags registered
// by addBatchFlags. Folders are made absolute since FaceFusion may run in
// another working directory. The returned catalog carries the --edit-prefix
// rule when one is given.
func requestFromFlags(cmd *cobra.Command, kind batch.Kind, catalog *presets.Catalog) (batch.Request, facefusion.ErrorPolicy, *presets.Catalog, error) {
	req := batch.NewRequest(kind)
	policy, err := facefusion.ParseErrorPolicy(mustGetString(cmd, "on-error"))
	if err != nil {
		return req, "", nil, err
	}

	if req.FilesDir, err = filepath.Abs(mustGetString(cmd, "files")); err != nil {
		return req, "", nil, err
	}
	if req.OutputDir, err = filepath.Abs(mustGetString(cmd, "output")); err != nil {
		return req, "", nil, err
	}
	if cmd.Flags().Lookup("main") != nil && req.MainDir != "" {
		if req.MainDir, err = filepath.Abs(mustGetString(cmd, "main")); err != nil {
			return req, "", nil, err
		}
	}
	if cmd.Flags().Lookup("source") != nil {
		if src := mustGetString(cmd, "source"); src != "" {
			if req.SourceFile, err = filepath.Abs(src); err != nil {
				return req, "", nil, err
			}
		}
	}
	if cmd.Flags().Lookup("iterations") != nil {
		req.Iterations = mustGetInt(cmd, "iterations")
	}
	if m := mustGetString(cmd, "media"); m != "" {
		if req.Media, err = media.ParseKinds(m); err != nil {
			return req, "", nil, err
		}
	}
	req.Preset = mustGetString(cmd, "preset")
	req.DeleteSources = mustGetBool(cmd, "delete-source")
	req.Sweep = mustGetBool(cmd, "sweep")
	req.Verify = mustGetBool(cmd, "verify")

	preset := req.Preset
	if preset == "" {
		preset = batch.DefaultPreset(kind)
	}
	if _, err := catalog.Get(preset); err != nil {
		return req, "", nil, err
	}
	if cmd.Flags().Lookup("edit-prefix") != nil {
		if prefix := mustGetString(cmd, "edit-prefix"); prefix != "" {
			if catalog, err = catalog.WithPrefixRule(preset, prefix, presets.EditPreset); err != nil {
				return req, "", nil, err
			}
		}
	}
	return req, policy, catalog, nil
}
