// Package contracts loads compiled contract artifacts and encodes the calls
// made against the token and marketplace contracts.
package contracts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Contract names as compiled by hardhat.
const (
	TokenContract       = "NonFungibleToken"
	MarketplaceContract = "NFT_Market"
)

// ErrArtifactNotFound is returned when no artifact file exists for a contract name.
var ErrArtifactNotFound = errors.New("contracts: artifact not found")

// Artifact represents a compiled Solidity contract with ABI and bytecode.
type Artifact struct {
	ContractName     string          `json:"contractName,omitempty"`
	SourceName       string          `json:"sourceName,omitempty"`
	ABI              json.RawMessage `json:"abi"`
	Bytecode         Bytecode        `json:"bytecode"`
	DeployedBytecode Bytecode        `json:"deployedBytecode,omitempty"`
}

// Bytecode contains the contract bytecode.
// It handles both formats:
// - Simple string: "0x608060..."
// - Object with "object" field: {"object": "0x608060..."}
type Bytecode struct {
	hex string
}

// UnmarshalJSON handles both string and object bytecode formats.
func (b *Bytecode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		b.hex = s
		return nil
	}

	var obj struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		b.hex = obj.Object
		return nil
	}

	return fmt.Errorf("bytecode must be a string or object with 'object' field")
}

// MarshalJSON marshals the bytecode as a string.
func (b Bytecode) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.hex)
}

// String returns the bytecode hex string.
func (b Bytecode) String() string {
	return b.hex
}

// LoadArtifact reads a single artifact JSON file.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if len(artifact.ABI) == 0 {
		return nil, fmt.Errorf("parse %s: missing abi", filepath.Base(path))
	}
	return &artifact, nil
}

// BytecodeBytes returns the creation bytecode as a byte slice.
func (a *Artifact) BytecodeBytes() ([]byte, error) {
	code := strings.TrimSpace(a.Bytecode.hex)
	if code == "" || code == "0x" {
		return nil, fmt.Errorf("empty bytecode")
	}
	if !strings.HasPrefix(code, "0x") {
		code = "0x" + code
	}
	b, err := hexutil.Decode(code)
	if err != nil {
		return nil, fmt.Errorf("decode bytecode: %w", err)
	}
	return b, nil
}

// ParsedABI returns the parsed ABI for direct access.
func (a *Artifact) ParsedABI() (abi.ABI, error) {
	return abi.JSON(bytes.NewReader(a.ABI))
}

// EncodeConstructorArgs encodes constructor arguments using the contract's ABI.
// Returns the encoded args (without bytecode prefix) ready to append to bytecode.
func (a *Artifact) EncodeConstructorArgs(args ...any) ([]byte, error) {
	parsedABI, err := a.ParsedABI()
	if err != nil {
		return nil, fmt.Errorf("parse ABI: %w", err)
	}

	if len(parsedABI.Constructor.Inputs) != len(args) {
		return nil, fmt.Errorf("constructor takes %d arguments, got %d",
			len(parsedABI.Constructor.Inputs), len(args))
	}
	if len(args) == 0 {
		return nil, nil
	}

	packed, err := parsedABI.Constructor.Inputs.Pack(args...)
	if err != nil {
		return nil, fmt.Errorf("pack constructor args: %w", err)
	}
	return packed, nil
}

// DeployData returns the contract creation payload: bytecode followed by the
// ABI-encoded constructor arguments.
func (a *Artifact) DeployData(args ...any) ([]byte, error) {
	code, err := a.BytecodeBytes()
	if err != nil {
		return nil, err
	}
	encoded, err := a.EncodeConstructorArgs(args...)
	if err != nil {
		return nil, err
	}
	data := make([]byte, 0, len(code)+len(encoded))
	data = append(data, code...)
	return append(data, encoded...), nil
}

// Store finds artifacts by contract name under a hardhat artifacts directory
// (artifacts/contracts/<File>.sol/<Name>.json). Lookups are cached.
type Store struct {
	dir string

	mu    sync.Mutex
	cache map[string]*Artifact
}

// NewStore creates a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{
		dir:   dir,
		cache: make(map[string]*Artifact),
	}
}

// Dir returns the root directory searched by the store.
func (s *Store) Dir() string {
	return s.dir
}

// Artifact returns the artifact for the named contract.
func (s *Store) Artifact(name string) (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a, ok := s.cache[name]; ok {
		return a, nil
	}

	path, err := s.find(name)
	if err != nil {
		return nil, err
	}
	a, err := LoadArtifact(path)
	if err != nil {
		return nil, err
	}
	s.cache[name] = a
	return a, nil
}

func (s *Store) find(name string) (string, error) {
	want := name + ".json"
	var found string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// hardhat writes solc inputs here, never artifacts
			if d.Name() == "build-info" {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == want {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search %s: %w", s.dir, err)
	}
	if found == "" {
		return "", fmt.Errorf("%w: %s in %s", ErrArtifactNotFound, name, s.dir)
	}
	return found, nil
}
