package contracts

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/lmittmann/w3"
	"golang.org/x/crypto/sha3"
)

// Entry points called after deployment.
var (
	FuncGrantRole     = w3.MustNewFunc("grantRole(bytes32 role, address account)", "")
	FuncToggleMinting = w3.MustNewFunc("toggleMinting(bool enabled)", "")
	FuncMint          = w3.MustNewFunc("mint(uint256 quantity)", "")
)

// RoleID is an access-control role identifier.
type RoleID [32]byte

// MinterRole is keccak256("MINTER_ROLE").
var MinterRole = RoleIDFromName("MINTER_ROLE")

// RoleIDFromName derives a role identifier the way AccessControl contracts
// do: keccak256 of the role name.
func RoleIDFromName(name string) RoleID {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(name))
	var id RoleID
	copy(id[:], h.Sum(nil))
	return id
}

// ParseRoleID accepts either a 0x-prefixed 32-byte hex identifier or a role
// name such as "MINTER_ROLE".
func ParseRoleID(s string) (RoleID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return RoleID{}, fmt.Errorf("empty role")
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return RoleIDFromName(s), nil
	}
	b, err := hexutil.Decode("0x" + s[2:])
	if err != nil {
		return RoleID{}, fmt.Errorf("invalid role %q: %w", s, err)
	}
	if len(b) != 32 {
		return RoleID{}, fmt.Errorf("invalid role %q: want 32 bytes, got %d", s, len(b))
	}
	var id RoleID
	copy(id[:], b)
	return id, nil
}

// Hex returns the 0x-prefixed hex encoding.
func (r RoleID) Hex() string {
	return hexutil.Encode(r[:])
}

func (r RoleID) String() string {
	return r.Hex()
}

// MarshalText implements encoding.TextMarshaler.
func (r RoleID) MarshalText() ([]byte, error) {
	return []byte(r.Hex()), nil
}

// IsZero reports whether the role is unset.
func (r RoleID) IsZero() bool {
	return r == RoleID{}
}
