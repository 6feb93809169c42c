// Package payload provides the values and task bodies the benchmark pushes
// through the queues and the pool.
package payload

import (
	"fmt"
	"math/big"
	"sort"

	"code.hybscloud.com/atomix"
	"github.com/valyala/fastrand"
)

// Int returns a pointer to i. Pointer payloads keep the queue copying one word.
func Int(i int) *int {
	v := i
	return &v
}

// limbs is the number of 32-bit words in a generated BigInt.
const limbs = 8

// BigInt returns a random multi-limb integer whose low word is i, so values
// stay distinguishable.
func BigInt(i int) *big.Int {
	v := new(big.Int)
	for range limbs - 1 {
		v.Lsh(v, 32)
		v.Or(v, big.NewInt(int64(fastrand.Uint32())))
	}
	v.Lsh(v, 32)
	return v.Or(v, big.NewInt(int64(uint32(i))))
}

// ParseBigInt parses a decimal integer.
func ParseBigInt(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("payload: invalid decimal integer %q", s)
	}
	return v, nil
}

// DefaultModulus is 2^127-1, a Mersenne prime.
var DefaultModulus = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))

// ParseModulus parses a decimal modulus for BigInt work. It must be > 1.
func ParseModulus(s string) (*big.Int, error) {
	m, err := ParseBigInt(s)
	if err != nil {
		return nil, err
	}
	if m.Cmp(big.NewInt(1)) <= 0 {
		return nil, fmt.Errorf("payload: modulus must be > 1, got %s", m)
	}
	return m, nil
}

// checksum accumulates the low word of every BigWork result.
var checksum atomix.Uint64

// Checksum returns the wrapping sum of the low words of all BigWork results
// computed so far.
func Checksum() uint64 {
	return checksum.Load()
}

// BigWork returns a task body computing (acc*x + x) mod m for a fresh
// random x, folding the result into Checksum. acc and m are only read.
func BigWork(acc, m *big.Int, i int) func() {
	return bigTask(acc, BigInt(i), m)
}

func bigTask(acc, x, m *big.Int) func() {
	return func() {
		r := new(big.Int).Mul(acc, x)
		r.Add(r, x)
		r.Mod(r, m)
		checksum.Add(r.Uint64())
	}
}

// IntWork returns a task body that only touches its own integer.
func IntWork(i int) func() {
	v := Int(i)
	return func() {
		*v++
	}
}

// Kind names a payload for queue runs and pool runs. Modulus is set for
// bigint only.
type Kind struct {
	Name    string
	Modulus *big.Int
	Task    func(i int) func()
}

func newKind(name string, m *big.Int) (Kind, bool) {
	switch name {
	case "int":
		return Kind{Name: name, Task: IntWork}, true
	case "bigint":
		return Kind{Name: name, Modulus: m, Task: func(i int) func() {
			return BigWork(BigInt(i), m, i)
		}}, true
	}
	return Kind{}, false
}

var names = []string{"bigint", "int"}

// Lookup returns the payload kind called name, with DefaultModulus for
// bigint work.
func Lookup(name string) (Kind, error) {
	return LookupModulus(name, DefaultModulus)
}

// LookupModulus is Lookup with an explicit modulus for bigint work.
func LookupModulus(name string, m *big.Int) (Kind, error) {
	k, ok := newKind(name, m)
	if !ok {
		return Kind{}, fmt.Errorf("payload: unknown kind %q (have %v)", name, Names())
	}
	return k, nil
}

// Names lists the registered payload kinds.
func Names() []string {
	out := append([]string(nil), names...)
	sort.Strings(out)
	return out
}
