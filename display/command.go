// Package display renders command results for the terminal.
package display

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/teranos/catalogix/errors"
)

// ShouldOutputJSON reports whether cmd was asked for JSON, either through its
// own --json flag or a persistent one on the root.
func ShouldOutputJSON(cmd *cobra.Command) bool {
	if cmd == nil {
		return false
	}
	if cmd.Flags().Changed("json") {
		jsonFlag, _ := cmd.Flags().GetBool("json")
		return jsonFlag
	}
	if flag := cmd.Root().PersistentFlags().Lookup("json"); flag != nil {
		return flag.Value.String() == "true"
	}
	return false
}

// OutputJSON writes v to w as indented JSON followed by a newline.
func OutputJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal JSON")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
