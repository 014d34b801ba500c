package debug

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xyproto/env/v2"
)

type debug struct {
	Match   bool
	Include bool
	Patch   bool
	Env     bool
	Collect bool
}

var d *debug

func init() {
	d = &debug{}
	d.Match = env.Bool("SVDPATCH_DEBUG_MATCH")
	d.Include = env.Bool("SVDPATCH_DEBUG_INCLUDE")
	d.Patch = env.Bool("SVDPATCH_DEBUG_PATCH")
	d.Env = env.Bool("SVDPATCH_DEBUG_ENV")
	d.Collect = env.Bool("SVDPATCH_DEBUG_COLLECT")
}

func Match() bool {
	return d.Match
}
func Include() bool {
	return d.Include
}
func Patch() bool {
	return d.Patch
}
func Env() bool {
	return d.Env
}
func Collect() bool {
	return d.Collect
}

func LogAny(v any) {
	d, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", v)
		return
	}
	os.Stderr.Write(d)
	os.Stderr.Write([]byte{'\n'})
}
