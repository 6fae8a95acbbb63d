package hwmon

import (
	"io/ioutil"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turbotelescope/turbo/services"
)

func Example_interfaces() {
	var _ services.Service = (*Service)(nil)
	// Output:
}

func TestReadTemp(t *testing.T) {
	file := path.Join(t.TempDir(), "temp")
	require.NoError(t, ioutil.WriteFile(file, []byte("42500\n"), 0644))

	temp, err := readTemp(file)
	assert.NoError(t, err)
	assert.Equal(t, 42.5, temp)
}

func TestReadTempMissing(t *testing.T) {
	_, err := readTemp(path.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}
