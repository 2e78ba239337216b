// Key and value encodings.
//
// Query keys are "language\x00rule" so a cursor Seek on "language\x00" walks
// one language's queries in rule order.
//
// Runs are stored as a one-byte format version followed by a gob stream.
// Gob is ~2-3x smaller than JSON for the violation lists that dominate a run.
package bbolt

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/corey/codeguard/internal/domain/rule"
)

const keySep = 0x00

// runFormat is the version byte prefixed to every encoded run.
const runFormat byte = 1

func queryKey(language, ruleName string) []byte {
	k := make([]byte, 0, len(language)+1+len(ruleName))
	k = append(k, language...)
	k = append(k, keySep)
	return append(k, ruleName...)
}

// queryPrefix returns the seek prefix for one language, or nil for all.
func queryPrefix(language string) []byte {
	if language == "" {
		return nil
	}
	return append([]byte(language), keySep)
}

func splitQueryKey(k []byte) (language, ruleName string, ok bool) {
	i := bytes.IndexByte(k, keySep)
	if i < 0 {
		return "", "", false
	}
	return string(k[:i]), string(k[i+1:]), true
}

func encodeRun(run *rule.Run) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(runFormat)
	if err := gob.NewEncoder(&buf).Encode(run); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeRun checks the version byte before decoding to avoid misreading
// data written by another format.
func decodeRun(data []byte) (*rule.Run, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty run record")
	}
	if data[0] != runFormat {
		return nil, fmt.Errorf("unknown run format %d", data[0])
	}
	var run rule.Run
	if err := gob.NewDecoder(bytes.NewReader(data[1:])).Decode(&run); err != nil {
		return nil, err
	}
	return &run, nil
}
