package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"mulay/internal/version"
)

type VersionCmd struct {
	JSON bool `long:"json" description:"print build information as JSON"`
	out  io.Writer
}

func (v *VersionCmd) Execute(_ []string) error {
	out := v.out
	if out == nil {
		out = os.Stdout
	}
	info := version.GetVersionInfo()
	if v.JSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(info)
	}
	_, err := fmt.Fprintln(out, info.String())
	return err
}
