package cmd

import (
	"github.com/kozaktomas/fusion-batch/internal/batch"
	"github.com/kozaktomas/fusion-batch/internal/constants"
	"github.com/spf13/cobra"
)

var swapCmd = &cobra.Command{
	Use:   "swap",
	Short: "Swap faces onto every file of the files folder",
	Long: `Swap faces onto every file of the files folder.

With --source, the one source image is swapped onto every image (single
source swap). Without it, every face of the main folder is swapped onto every
video of the files folder (pairwise swap); sources whose name starts with
--edit-prefix also get the face editor.`,
	Example: `  fusion-batch swap --source faces/anna.jpg --files files --output folder
  fusion-batch swap --main main --files files --edit-prefix ghader--`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := batch.KindPairwise
		if mustGetString(cmd, "source") != "" {
			kind = batch.KindSingle
		}
		return runBatch(cmd, kind)
	},
}

var matrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Swap every face onto every image, deleting each image once done",
	Long: `Swap every face of the main folder onto every image of the files folder
and enhance the result. An image is deleted once all of its faces succeeded,
so an interrupted matrix can be resumed by running it again.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, batch.KindMatrix)
	},
}

var enhanceCmd = &cobra.Command{
	Use:   "enhance",
	Short: "Enhance the faces of every image of the files folder",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, batch.KindEnhance)
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore images and videos with repeated enhancement passes",
	Long: `Restore every image and video of the files folder. Each pass enhances the
output of the previous one; a pass is skipped when the one before it failed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, batch.KindRestore)
	},
}

func init() {
	rootCmd.AddCommand(swapCmd, matrixCmd, enhanceCmd, restoreCmd)

	addBatchFlags(swapCmd, batch.KindPairwise)
	swapCmd.Flags().String("source", "", "Source face image; switches to single source swap")
	swapCmd.Flags().String("edit-prefix", "", "Sources starting with this prefix use the swap-edit preset")

	addBatchFlags(matrixCmd, batch.KindMatrix)
	matrixCmd.Flags().String("edit-prefix", "", "Faces starting with this prefix use the swap-edit preset")

	addBatchFlags(enhanceCmd, batch.KindEnhance)

	addBatchFlags(restoreCmd, batch.KindRestore)
	restoreCmd.Flags().Int("iterations", constants.DefaultRestoreIterations, "Number of enhancement passes per file")
}
