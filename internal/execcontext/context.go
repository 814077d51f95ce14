// Package execcontext runs external commands (multipass, powershell) with an
// optional environment and command prefix such as "sudo".
package execcontext

import (
	"fmt"
	"maps"
	"os/exec"
	"strings"
)

// Context describes how external commands are executed.
type Context interface {
	Envs() map[string]string
	PrependCmd() []string
}

// New returns a Context with the given extra environment and command prefix.
func New(envs map[string]string, prependCmd []string) Context {
	return &execContext{
		prependCmd: prependCmd,
		envs:       envs,
	}
}

type execContext struct {
	envs       map[string]string
	prependCmd []string
}

// Envs implements Context.
func (c *execContext) Envs() map[string]string {
	out := make(map[string]string, len(c.envs))
	maps.Copy(out, c.envs)
	return out
}

// PrependCmd implements Context.
func (c *execContext) PrependCmd() []string {
	out := make([]string, len(c.prependCmd))
	copy(out, c.prependCmd)
	return out
}

// ApplyToCmd rewrites cmd so it runs with the environment and prefix of ctx.
func ApplyToCmd(ctx Context, cmd *exec.Cmd) {
	for k, v := range ctx.Envs() {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	prependCmd := ctx.PrependCmd()
	if len(prependCmd) < 1 {
		return
	}

	tmpCmd := exec.Command(prependCmd[0], prependCmd[1:]...)
	cmd.Path = tmpCmd.Path
	cmd.Args = append(tmpCmd.Args, cmd.Args...)
	if tmpCmd.Err != nil {
		cmd.Err = tmpCmd.Err
	}
}

// FormatCmd renders the command line that ApplyToCmd would execute, for logs.
func FormatCmd(ctx Context, cmd ...string) string {
	var b strings.Builder

	for k, v := range ctx.Envs() {
		fmt.Fprintf(&b, "%s=%q ", k, v)
	}

	for _, s := range ctx.PrependCmd() {
		safelyAppendToCmd(&b, s)
	}

	for _, s := range cmd {
		safelyAppendToCmd(&b, s)
	}

	return strings.TrimSpace(b.String())
}

var unquotable = map[string]struct{}{
	"&&": {},
	"||": {},
	";":  {},
	"&":  {},
	"|":  {},
}

func safelyAppendToCmd(b *strings.Builder, s string) {
	if _, ok := unquotable[s]; ok {
		fmt.Fprintf(b, "%s ", s)
		return
	}
	if s != "" && !strings.ContainsAny(s, " \t\n\"'$`\\") {
		fmt.Fprintf(b, "%s ", s)
		return
	}
	fmt.Fprintf(b, "%q ", s)
}
