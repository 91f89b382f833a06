package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	assert := assert.New(t)
	c := DefaultConfig()
	assert.NoError(c.Validate())
	assert.Equal(30*time.Second, c.ProcessInterval)
	assert.Equal(600*time.Second, c.EvidenceTimeout)
	assert.Equal(300*time.Second, c.AggregationWindow)
	assert.Equal(1000, c.MaxTargetsPerEvent)
	assert.Equal(100, c.MaxSatellitesPerExport)
	assert.Equal(uint16(49152), c.MinSrcPort)
}

func TestLoadYAMLOverridesOnlySetFields(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	const doc = `
process_interval: 5
evidence_timeout: 120
max_targets_per_event: 50
legacy_purge_without_export: true
`
	require.NoError(ioutil.WriteFile(path, []byte(doc), 0o644))

	c := DefaultConfig()
	require.NoError(c.LoadYAML(path))

	assert.Equal(5*time.Second, c.ProcessInterval)
	assert.Equal(120*time.Second, c.EvidenceTimeout)
	assert.Equal(50, c.MaxTargetsPerEvent)
	assert.True(c.LegacyPurgeWithoutExport)
	// Untouched fields keep their defaults.
	assert.Equal(300*time.Second, c.AggregationWindow)
	assert.Equal(100, c.MaxSatellitesPerExport)
}

func TestLoadYAMLMissingFileReturnsError(t *testing.T) {
	c := DefaultConfig()
	err := c.LoadYAML(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsNonsenseWindows(t *testing.T) {
	assert := assert.New(t)
	c := DefaultConfig()
	c.ProcessInterval = 0
	assert.Error(c.Validate())
}

const sampleBlacklistXML = `<?xml version="1.0"?>
<plist>
<array type="IP">
  <dict>
    <string name="id">1</string>
    <string name="name">feodo</string>
    <string name="category">Intrusion.Botnet</string>
    <string name="source">https://example.invalid/feodo.txt</string>
  </dict>
  <dict>
    <string name="id">2</string>
    <string name="name">spamhaus</string>
    <string name="category">Spam</string>
    <string name="source">https://example.invalid/spamhaus.txt</string>
  </dict>
</array>
<array type="URL/DNS">
  <dict>
    <string name="id">1</string>
    <string name="name">phishtank</string>
    <string name="category">Phishing</string>
    <string name="source">https://example.invalid/phishtank.txt</string>
  </dict>
</array>
</plist>
`

func TestLoadBlacklistConfigDerivesBitsAndBotnetSet(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "bl.xml")
	require.NoError(ioutil.WriteFile(path, []byte(sampleBlacklistXML), 0o644))

	bc, err := LoadBlacklistConfig(path)
	require.NoError(err)

	require.Contains(bc.IP, uint64(1))
	assert.Equal("feodo", bc.IP[1].Name)
	assert.Equal(uint64(1), bc.IP[1].Bit)

	require.Contains(bc.IP, uint64(2))
	assert.Equal("spamhaus", bc.IP[2].Name)
	assert.Equal(uint64(2), bc.IP[2].Bit)

	require.Contains(bc.URLDNS, uint64(1))
	assert.Equal("phishtank", bc.URLDNS[1].Name)

	botnet := bc.BotnetActivationSet()
	assert.True(botnet[1])
	assert.False(botnet[2])
}

func TestLoadBlacklistConfigMissingFile(t *testing.T) {
	_, err := LoadBlacklistConfig(filepath.Join(os.TempDir(), "nope-bl.xml"))
	assert.Error(t, err)
}
