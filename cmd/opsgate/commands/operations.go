package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/opsgate/am"
	"github.com/teranos/opsgate/errors"
	"github.com/teranos/opsgate/operation"
	"github.com/teranos/opsgate/ops"
)

// OperationsCmd lists the operations the server would register
var OperationsCmd = &cobra.Command{
	Use:     "operations",
	Aliases: []string{"ops"},
	Short:   "List registered operations",
	Long:    `List the built-in operations, honouring operations.disabled from the config.`,
	RunE:    runOperations,
}

var operationsJSON bool

func init() {
	OperationsCmd.Flags().BoolVarP(&operationsJSON, "json", "j", false, "Output as JSON")
}

// enabledOperations returns the built-ins minus those disabled in cfg
func enabledOperations(cfg *am.Config) ([]*operation.Descriptor, error) {
	descs, err := ops.Builtins()
	if err != nil {
		return nil, err
	}
	return ops.Filter(descs, cfg.IsOperationDisabled), nil
}

func runOperations(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	descs, err := enabledOperations(cfg)
	if err != nil {
		return err
	}
	reg, err := operation.NewRegistry(descs...)
	if err != nil {
		return err
	}

	if operationsJSON {
		infos := make([]operation.Info, 0, reg.Len())
		for _, d := range reg.List() {
			infos = append(infos, d.Info())
		}
		out, err := json.MarshalIndent(infos, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to encode operations")
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}

	return pterm.DefaultTable.WithHasHeader().WithData(operationRows(reg.List())).Render()
}

// operationRows renders descriptors as table rows, header first
func operationRows(descs []*operation.Descriptor) pterm.TableData {
	rows := pterm.TableData{{"ID", "Method", "Auth", "Capabilities", "Template"}}
	for _, d := range descs {
		auth := "required"
		if !d.AuthRequired() {
			auth = "public"
		}
		caps := strings.Join(d.Capabilities(), ",")
		if caps == "" {
			caps = "-"
		}
		rows = append(rows, []string{d.ID(), d.Kind().Method(), auth, caps, d.Template()})
	}
	return rows
}
