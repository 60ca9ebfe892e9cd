package cmd

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcgn/mail-to-pairs/model"
	"github.com/dhcgn/mail-to-pairs/pairs"
	"github.com/dhcgn/mail-to-pairs/thread"
)

func TestThreadStats_Add(t *testing.T) {
	s := newThreadStats(pairs.Identity{Name: "Bob"})

	s.add(model.Item{
		Header: model.Header{From: "Bob <b@x.com>", Subject: "Re: Hi"},
		Body:   "Sure thing.\r\n\r\nOn Mon, Ann Lee <ann@x.com> wrote:\r\n\r\nCan you help?",
	})
	s.add(model.Item{
		Header: model.Header{From: "Bob <b@x.com>", Subject: "Note"},
		Body:   "Top\r\n\r\nOn Mon, Ann wrote:\r\n> no blank line",
	})

	assert.Equal(t, 2, s.messages)
	assert.Equal(t, 1, s.pairs)
	assert.Equal(t, map[string]int{"inline": 2}, s.counter[reportFormat])
	assert.Equal(t, map[string]int{"2": 1, "1": 1}, s.counter[reportDepth])
	assert.Equal(t, 1, s.counter[reportQuotedFrom]["Ann Lee <ann@x.com>"])
	assert.Equal(t, 1, s.counter[reportSegmentErrors]["inline: "+thread.ErrNoBoundary.Error()])
}

func TestSaveCSVReports(t *testing.T) {
	dir := t.TempDir()
	counter := map[string]map[string]int{
		reportFormat: {"inline": 3, "none": 5, "underscore": 1},
	}

	require.NoError(t, saveCSVReports(counter, []string{reportFormat, reportSegmentErrors}, dir, 2))

	file, err := os.Open(filepath.Join(dir, "report_format.csv"))
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Value", "Count"}, {"none", "5"}, {"inline", "3"}}, records)
	assert.FileExists(t, filepath.Join(dir, "report_segment_errors.csv"))
}

func TestIdentityLabel(t *testing.T) {
	assert.Equal(t, "Bob / b@x.com", identityLabel(pairs.Identity{Name: "Bob", Address: "b@x.com"}))
	assert.Equal(t, "b@x.com", identityLabel(pairs.Identity{Address: "b@x.com"}))
}
