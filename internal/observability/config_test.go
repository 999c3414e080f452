package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStartWithoutProfileIsNoop(t *testing.T) {
	stopper := Start(Config{})
	assert.IsType(t, noopStopper{}, stopper)
	assert.NotPanics(t, stopper.Stop)

	assert.IsType(t, noopStopper{}, Start(Config{Profile: "flame"}))
}

func TestStartCPUProfileWritesFile(t *testing.T) {
	dir := t.TempDir()
	stopper := Start(Config{Profile: ProfileCPU, ProfilePath: dir})
	stopper.Stop()
	assert.FileExists(t, dir+"/cpu.pprof")
}
