// File: cmd/template.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/videx-autofill/internal/translate"
)

// newTemplateCmd creates the `template` command: write a starter data file
// with English field names.
func newTemplateCmd() *cobra.Command {
	templateCmd := &cobra.Command{
		Use:   "template [path]",
		Short: "Writes an English-keyed applicant data template",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "my_visa_data.json"
			if len(args) == 1 {
				path = args[0]
			}
			if err := translate.WriteEnglishTemplate(path); err != nil {
				return err
			}
			fmt.Printf("Template written to %s\n", path)
			fmt.Println("Fill in the values, then run: videx-autofill fill " + path)
			return nil
		},
	}
	return templateCmd
}
