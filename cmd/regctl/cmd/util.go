package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	hex "github.com/tmthrgd/go-hex"

	"github.com/xuperchain/xregister/kernel/register"
)

func printJSON(w io.Writer, v interface{}) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal failed.err:%v", err)
	}
	fmt.Fprintln(w, string(output))
	return nil
}

func decodeHex(s string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("hex decode failed.err:%v", err)
	}
	return raw, nil
}

type fieldView struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Mutable bool   `json:"mutable"`
	Value   string `json:"value"`
}

type stateView struct {
	Version  uint8       `json:"version"`
	Type     uint8       `json:"type"`
	Owner    string      `json:"owner"`
	Created  uint64      `json:"created"`
	Modified uint64      `json:"modified"`
	Checksum uint64      `json:"checksum"`
	Valid    bool        `json:"valid"`
	Data     string      `json:"data,omitempty"`
	Fields   []fieldView `json:"fields,omitempty"`
}

// viewState renders s, expanding object fields. A malformed object payload
// is shown raw.
func viewState(s *register.State) *stateView {
	v := &stateView{
		Version:  s.Version,
		Type:     s.Type,
		Owner:    s.Owner.String(),
		Created:  s.Created,
		Modified: s.Modified,
		Checksum: s.Checksum,
		Valid:    s.IsValid(),
	}
	if s.Type != register.StateObject {
		v.Data = hex.EncodeToString(s.Data())
		return v
	}
	o, err := register.ParseObject(s)
	if err != nil {
		v.Data = hex.EncodeToString(s.Data())
		return v
	}
	for _, f := range o.Fields() {
		val, err := o.Read(f.Name)
		if err != nil {
			continue
		}
		v.Fields = append(v.Fields, fieldView{f.Name, f.Type.String(), f.Mutable, val.String()})
	}
	return v
}
