package tensor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/taurusgroup/dilithium-sca/pkg/dataset"
	"github.com/taurusgroup/dilithium-sca/pkg/dilithium"
	"github.com/taurusgroup/dilithium-sca/pkg/params"
)

// File names written by Export.
const (
	PolyFile          = "poly.npy"
	CoeffFile         = "coeff.npy"
	ChallengeFile     = "c.npy"
	ResponseFile      = "z.npy"
	MaskFile          = "y.npy"
	SecretFile        = "s1.npy"
	BooleanSharesFile = "bs.npy"
)

// Export replaces dir with one array per record field, indexed by record, plus
// the secret vector s1 used as ground truth. The Boolean shares are only
// written when masked is set.
func Export(ds *dataset.Dataset, s1 []dilithium.Poly, dir string, masked bool) error {
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("tensor: clear %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("tensor: create %s: %w", dir, err)
	}

	n := len(ds.Records)
	poly := make([]uint8, n)
	coeff := make([]uint8, n)
	c := make([]int32, n*params.N)
	z := make([]int32, n)
	y := make([]int32, n)
	var bs []uint32
	if masked {
		bs = make([]uint32, n*params.ShareCount)
	}
	for i := range ds.Records {
		r := &ds.Records[i]
		poly[i] = r.Poly
		coeff[i] = r.Coeff
		copy(c[i*params.N:], r.Challenge[:])
		z[i] = r.Response
		y[i] = r.MaskedShare
		if masked {
			copy(bs[i*params.ShareCount:], r.BooleanShares[:])
		}
	}

	secret := make([]int32, 0, len(s1)*params.N)
	for i := range s1 {
		secret = append(secret, s1[i][:]...)
	}

	files := []struct {
		name  string
		shape []int
		data  interface{}
	}{
		{PolyFile, []int{n}, poly},
		{CoeffFile, []int{n}, coeff},
		{ChallengeFile, []int{n, params.N}, c},
		{ResponseFile, []int{n}, z},
		{MaskFile, []int{n}, y},
		{SecretFile, []int{len(s1), params.N}, secret},
	}
	if masked {
		files = append(files, struct {
			name  string
			shape []int
			data  interface{}
		}{BooleanSharesFile, []int{n, params.ShareCount}, bs})
	}
	for _, f := range files {
		if err := WriteFile(filepath.Join(dir, f.name), f.shape, f.data); err != nil {
			return err
		}
	}
	return nil
}
