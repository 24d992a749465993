package engine

import (
	_ "embed"
	"io"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Descriptor describes the memory map and the capabilities of a sound engine build.
type Descriptor struct {
	Name string `yaml:"name"`

	SongTable       int `yaml:"song_table"`
	MaxSongs        int `yaml:"max_songs"`
	InstrumentTable int `yaml:"instrument_table"`
	// InstrumentEntrySize is at least 6: srcn, adsr1, adsr2, gain, tuning (int, frac).
	InstrumentEntrySize int `yaml:"instrument_entry_size"`
	MaxInstruments      int `yaml:"max_instruments"`
	SampleDirectory     int `yaml:"sample_directory"`
	MaxSamples          int `yaml:"max_samples"`

	Reserved []AddressRange `yaml:"reserved"`

	Echo EchoConfig `yaml:"echo"`

	Extensions []Extension `yaml:"extensions"`
}

type AddressRange struct {
	From  int    `yaml:"from"`
	To    int    `yaml:"to"`
	Label string `yaml:"label"`
}

func (r AddressRange) Size() int { return r.To - r.From }

type EchoConfig struct {
	Delay    uint8 `yaml:"delay"`
	Feedback uint8 `yaml:"feedback"`
	FIR      uint8 `yaml:"fir"`
	Volume   uint8 `yaml:"volume"`
}

// Extension is an optional engine capability.
type Extension struct {
	Name     string             `yaml:"name"`
	Commands []ExtensionCommand `yaml:"commands"`
}

type ExtensionCommand struct {
	Name   string `yaml:"name"`
	ID     uint8  `yaml:"id"`
	Params int    `yaml:"params"`
}

const sampleDirEntrySize = 4

func (d *Descriptor) SongTableRange() AddressRange {
	return AddressRange{From: d.SongTable, To: d.SongTable + d.MaxSongs*2, Label: "song table"}
}

func (d *Descriptor) InstrumentTableRange() AddressRange {
	return AddressRange{
		From:  d.InstrumentTable,
		To:    d.InstrumentTable + d.MaxInstruments*d.InstrumentEntrySize,
		Label: "instrument table",
	}
}

func (d *Descriptor) SampleDirectoryRange() AddressRange {
	return AddressRange{
		From:  d.SampleDirectory,
		To:    d.SampleDirectory + d.MaxSamples*sampleDirEntrySize,
		Label: "sample directory",
	}
}

// Tables returns the structural tables of the memory map.
func (d *Descriptor) Tables() []AddressRange {
	return []AddressRange{d.SongTableRange(), d.InstrumentTableRange(), d.SampleDirectoryRange()}
}

// FindExtension looks up an extension whose name contains the given
// substring, ignoring the case.
func (d *Descriptor) FindExtension(substr string) (*Extension, bool) {
	substr = strings.ToLower(substr)
	for i := range d.Extensions {
		if strings.Contains(strings.ToLower(d.Extensions[i].Name), substr) {
			return &d.Extensions[i], true
		}
	}
	return nil, false
}

// Command finds the extension command by its name.
func (ext *Extension) Command(name string) (ExtensionCommand, bool) {
	for _, c := range ext.Commands {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return ExtensionCommand{}, false
}

// LoadDescriptor decodes a YAML engine descriptor.
func LoadDescriptor(r io.Reader) (*Descriptor, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read descriptor")
	}
	var d Descriptor
	if err := yaml.UnmarshalStrict(data, &d); err != nil {
		return nil, errors.Wrap(err, "decode descriptor")
	}
	if err := d.validate(); err != nil {
		return nil, errors.Wrapf(err, "descriptor %q", d.Name)
	}
	return &d, nil
}

//go:embed descriptors/nspc.yaml
var defaultDescriptorData string

// DefaultDescriptor returns the built-in N-SPC style engine layout.
// Every call returns a fresh copy.
func DefaultDescriptor() *Descriptor {
	d, err := LoadDescriptor(strings.NewReader(defaultDescriptorData))
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Descriptor) validate() error {
	if d.InstrumentEntrySize < 6 {
		return errors.Errorf("instrument entry size %d is less than 6", d.InstrumentEntrySize)
	}
	if d.MaxSongs <= 0 || d.MaxInstruments <= 0 || d.MaxSamples <= 0 {
		return errors.New("table capacities must be positive")
	}
	if d.MaxInstruments > 256 || d.MaxSamples > 256 {
		return errors.New("instrument and sample tables are limited to 256 entries")
	}

	ranges := append(d.Tables(), d.Reserved...)
	for i, r := range ranges {
		if r.From < 0 || r.To > 0x10000 || r.From >= r.To {
			return errors.Errorf("%s [$%04X, $%04X) is not a valid range", r.Label, r.From, r.To)
		}
		for _, other := range ranges[:i] {
			if r.From < other.To && other.From < r.To {
				return errors.Errorf("%s overlaps %s", r.Label, other.Label)
			}
		}
	}

	for _, ext := range d.Extensions {
		for _, c := range ext.Commands {
			if c.ID < 0xFB {
				return errors.Errorf("%s: command id $%02X collides with the built-in commands", ext.Name, c.ID)
			}
			if c.Params < 0 || c.Params > maxVcmdArgs {
				return errors.Errorf("%s: command %s has %d params", ext.Name, c.Name, c.Params)
			}
		}
	}
	return nil
}
