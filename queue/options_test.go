package queue

import (
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRejectsEmptyName(t *testing.T) {
	o := Options{BytesCapacity: datasize.ByteSize(128)}
	require.Error(t, o.validate("test"))
}

func TestValidateRejectsPathSeparator(t *testing.T) {
	o := Options{Name: "a/b", BytesCapacity: datasize.ByteSize(128)}
	require.Error(t, o.validate("test"))
}

func TestValidateRejectsUndersizedCapacity(t *testing.T) {
	o := Options{Name: "q", BytesCapacity: datasize.ByteSize(8)}
	require.Error(t, o.validate("test"))
}

func TestValidateAcceptsWellFormedOptions(t *testing.T) {
	o := Options{Name: "q", BytesCapacity: datasize.ByteSize(128)}
	assert.NoError(t, o.validate("test"))
}

func TestCouplingName(t *testing.T) {
	assert.Equal(t, "/Cfoo", couplingName("foo"))
}

func TestWithNamePreservesOtherFields(t *testing.T) {
	o := Options{Name: "foo", Dir: "/tmp", BytesCapacity: datasize.ByteSize(64)}
	o2 := o.withName("bar")
	assert.Equal(t, "bar", o2.Name)
	assert.Equal(t, "/tmp", o2.Dir)
	assert.Equal(t, o.BytesCapacity, o2.BytesCapacity)
}
