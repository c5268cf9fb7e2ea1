// Package prereq runs the pre-flight checks every command performs before
// touching the cloud: required client tools, required local files, and
// credential validity.
package prereq

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/modelkube/modelkube/internal/resource"
)

// Tool is a client binary a command depends on.
type Tool struct {
	// Name is the binary name looked up in PATH.
	Name string

	// Description explains what the tool is used for.
	Description string

	// InstallURL points at installation instructions.
	InstallURL string
}

// DefaultTools lists the binaries every provisioning command needs. The
// aws CLI mints the exec-auth tokens in generated kubeconfigs; kubectl is
// what operators use to follow up on what the provisioner applied.
func DefaultTools() []Tool {
	return []Tool{
		{
			Name:        "aws",
			Description: "Mints authentication tokens for the provisioned cluster",
			InstallURL:  "https://docs.aws.amazon.com/cli/latest/userguide/getting-started-install.html",
		},
		{
			Name:        "kubectl",
			Description: "Inspects and manages the provisioned cluster",
			InstallURL:  "https://kubernetes.io/docs/tasks/tools/",
		},
	}
}

// ToolResult is the outcome of checking one tool.
type ToolResult struct {
	Tool  Tool
	Found bool
	Path  string
}

// ToolResults aggregates tool checks.
type ToolResults struct {
	Results []ToolResult
	Missing []Tool
}

// Err returns an error satisfying resource.ErrToolMissing when any tool is
// absent, listing every missing tool at once.
func (r *ToolResults) Err() error {
	if len(r.Missing) == 0 {
		return nil
	}
	names := make([]string, len(r.Missing))
	for i, tool := range r.Missing {
		names[i] = fmt.Sprintf("%s (%s)", tool.Name, tool.InstallURL)
	}
	return fmt.Errorf("%w: %s", resource.ErrToolMissing, strings.Join(names, ", "))
}

// lookPath is swapped in tests.
var lookPath = exec.LookPath

// CheckTools looks every tool up in PATH. All tools are checked before
// reporting so the operator sees the complete list in one pass.
func CheckTools(tools []Tool) *ToolResults {
	results := &ToolResults{}
	for _, tool := range tools {
		res := ToolResult{Tool: tool}
		if path, err := lookPath(tool.Name); err == nil {
			res.Found = true
			res.Path = path
		} else {
			results.Missing = append(results.Missing, tool)
		}
		results.Results = append(results.Results, res)
	}
	return results
}
