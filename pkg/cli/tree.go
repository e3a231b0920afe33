package cli

import (
	"fmt"
	"io"

	"github.com/antibyte/webdesk/pkg/shell"
	"github.com/antibyte/webdesk/pkg/virtualfs"

	"github.com/spf13/cobra"
)

func newTreeCommand(opts *Options) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the bundled filesystem",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bundle, err := loadBundle(opts)
			if err != nil {
				return err
			}
			return printTree(cmd.OutOrStdout(), virtualfs.New(bundle), path)
		},
	}
	cmd.Flags().StringVarP(&path, "path", "p", "/", "folder to start from")
	return cmd
}

func printTree(out io.Writer, fs *virtualfs.VFS, path string) error {
	target := fs.ResolvePath(nil, path)
	node, ok := fs.GetNode(target)
	if !ok {
		return fmt.Errorf("%s: no such file or directory", path)
	}
	if !node.IsDir() {
		return fmt.Errorf("%s: not a directory", path)
	}
	fmt.Fprintln(out, virtualfs.FormatPath(target))
	for _, line := range shell.RenderTree(node)[1:] {
		fmt.Fprintln(out, line)
	}
	return nil
}
