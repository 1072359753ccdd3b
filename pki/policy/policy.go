// Package policy provides the optional site-wide issuance defaults. A
// policy file next to the certificate artifacts overrides the built-in
// defaults for organization, validity, RSA modulus size and the default
// signing authority; everything else stays request-scoped.
package policy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	_ "embed"

	"github.com/ghodss/yaml"
	"github.com/santhosh-tekuri/jsonschema"

	"github.com/twocca/twocca/logging"
)

// ErrInvalidPolicy is returned when a policy file exists but does not
// validate against the schema.
var ErrInvalidPolicy = errors.New("policy: invalid policy file")

// DefaultFile is the policy file name looked up next to the artifacts.
const DefaultFile = "twocca-policy.yaml"

//go:embed schema.json
var policySchemaString string

var policySchema *jsonschema.Schema

func init() {
	compiler := jsonschema.NewCompiler()
	err := compiler.AddResource("schema.json", strings.NewReader(policySchemaString))
	if err != nil {
		panic(fmt.Sprintf("policy: error adding schema: %v", err))
	}
	policySchema, err = compiler.Compile("schema.json")
	if err != nil {
		panic(fmt.Sprintf("policy: error compiling schema: %v", err))
	}
}

// Policy holds the site-wide issuance defaults.
type Policy struct {
	Organization string `json:"organization"`
	Days         int    `json:"days"`
	RSABits      int    `json:"rsaBits"`
	SigningCA    string `json:"signingCA"`
}

// Default returns the built-in defaults applied when no policy file exists.
func Default() Policy {
	return Policy{
		Organization: "Home",
		Days:         3650,
		RSABits:      2048,
		SigningCA:    "root",
	}
}

// Parse validates and decodes a YAML policy document. Omitted fields keep
// their built-in defaults.
func Parse(data []byte) (Policy, error) {
	p := Default()

	js, err := yaml.YAMLToJSON(data)
	if err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	if err := policySchema.Validate(bytes.NewBuffer(js)); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	if err := json.Unmarshal(js, &p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}

	return p, nil
}

// Load reads the policy file from the artifact filesystem. A missing file
// is not an error; the built-in defaults apply.
func Load(fsys fs.FS) (Policy, error) {
	data, err := fs.ReadFile(fsys, DefaultFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Default(), fmt.Errorf("policy: reading %s: %w", DefaultFile, err)
	}

	logging.Debugf("applying policy from %s", DefaultFile)
	return Parse(data)
}
