package payload

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntReturnsDistinctPointers(t *testing.T) {
	a, b := Int(1), Int(1)
	assert.NotSame(t, a, b)
	assert.Equal(t, *a, *b)
}

func TestBigIntKeepsIndexInLowWord(t *testing.T) {
	for _, i := range []int{0, 1, 42, 1<<31 - 1} {
		v := BigInt(i)
		assert.Equal(t, uint64(uint32(i)), v.Uint64()&0xffffffff, "index %d", i)
		assert.LessOrEqual(t, v.BitLen(), limbs*32)
	}
}

func TestParseBigInt(t *testing.T) {
	v, err := ParseBigInt("170141183460469231731687303715884105727")
	require.NoError(t, err)
	assert.Equal(t, 0, v.Cmp(DefaultModulus))

	_, err = ParseBigInt("12x")
	assert.Error(t, err)
}

func TestParseModulus(t *testing.T) {
	m, err := ParseModulus("1000003")
	require.NoError(t, err)
	assert.Equal(t, int64(1000003), m.Int64())

	for _, in := range []string{"1", "0", "-7", "abc"} {
		_, err := ParseModulus(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestBigTaskFoldsIntoChecksum(t *testing.T) {
	before := Checksum()
	// (2*3 + 3) mod 7 = 2
	bigTask(big.NewInt(2), big.NewInt(3), big.NewInt(7))()
	assert.Equal(t, uint64(2), Checksum()-before)
}

func TestBigWorkStaysBelowModulus(t *testing.T) {
	m := big.NewInt(1000003)
	before := Checksum()
	for i := range 50 {
		BigWork(BigInt(i), m, i)()
	}
	// Each result is < m, so 50 of them sum to less than 50*m.
	assert.Less(t, Checksum()-before, uint64(50*1000003))
}

func TestLookupModulus(t *testing.T) {
	m := big.NewInt(97)
	k, err := LookupModulus("bigint", m)
	require.NoError(t, err)
	assert.Same(t, m, k.Modulus)

	k, err = Lookup("bigint")
	require.NoError(t, err)
	assert.Same(t, DefaultModulus, k.Modulus)

	k, err = LookupModulus("int", m)
	require.NoError(t, err)
	assert.Nil(t, k.Modulus)
}

func TestWorkRuns(t *testing.T) {
	for _, name := range Names() {
		k, err := Lookup(name)
		require.NoError(t, err)
		assert.Equal(t, name, k.Name)
		assert.NotPanics(t, func() {
			for i := range 100 {
				k.Task(i)()
			}
		})
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("float")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bigint")
	assert.Equal(t, []string{"bigint", "int"}, Names())
}
