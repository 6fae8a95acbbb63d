package gcn

import (
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notice(role string, params string) []byte {
	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<voe:VOEvent xmlns:voe="http://www.ivoa.net/xml/VOEvent/v2.0"
  ivorn="ivo://gwnet/LVC#S240320a-1-Preliminary" role="%s" version="2.0">
  <What>
    <Param name="AlertType" dataType="string" value="Preliminary"/>
    <Param name="GraceID" dataType="string" value="S240320a"/>
    <Param name="FAR" dataType="float" value="3.2e-10"/>
    <Group type="Classification" name="Classification">
      <Param name="BNS" dataType="float" value="0.95"/>
      <Param name="Terrestrial" dataType="float" value="0.01"/>
      %s
    </Group>
  </What>
</voe:VOEvent>`, role, params))
}

func TestParseVOEvent(t *testing.T) {
	v, err := ParseVOEvent(notice("observation", ""))
	require.NoError(t, err)
	assert.Equal(t, "observation", v.Role)

	grace, ok := v.Param("GraceID")
	assert.True(t, ok)
	assert.Equal(t, "S240320a", grace)

	// group params are found too
	terrestrial, ok := v.Param("Terrestrial")
	assert.True(t, ok)
	assert.Equal(t, "0.01", terrestrial)

	_, ok = v.Param("Nonexistent")
	assert.False(t, ok)
}

func writeTargets(t *testing.T, dir, graceID string, n int) {
	var data string
	for i := 0; i < n; i++ {
		data += fmt.Sprintf("tile%d,%.1f,%.1f\n", i, float64(i), float64(i)/2)
	}
	require.NoError(t, ioutil.WriteFile(path.Join(dir, graceID+"_targets.txt"), []byte(data), 0644))
}

func TestHandleNotice(t *testing.T) {
	dir := t.TempDir()
	service := &Service{dataDir: dir}
	writeTargets(t, dir, "S240320a", 5)

	now := time.Now()
	schedule := service.handleNotice("gcn.classic.voevent.LVC_PRELIMINARY", 42, notice("observation", ""), now)
	require.NotNil(t, schedule)
	assert.Equal(t, "S240320a", schedule.Name)
	assert.Len(t, schedule.Targets, 5)
	assert.Equal(t, 1, schedule.Priority)
	assert.Equal(t, now.Add(30*time.Minute), *schedule.Expiration)

	// notice saved for the records
	_, err := os.Stat(path.Join(dir, "LVC_PRELIMINARY_42.xml"))
	assert.NoError(t, err)
}

func TestTestNoticeIgnored(t *testing.T) {
	service := &Service{dataDir: t.TempDir()}
	schedule := service.handleNotice("gcn.classic.voevent.LVC_PRELIMINARY", 1, notice("test", ""), time.Now())
	assert.Nil(t, schedule)
}

func TestRetractionClearsSchedule(t *testing.T) {
	dir := t.TempDir()
	service := &Service{dataDir: dir}
	data := []byte(`<?xml version="1.0"?>
<voe:VOEvent xmlns:voe="http://www.ivoa.net/xml/VOEvent/v2.0" role="observation" version="2.0">
  <What>
    <Param name="AlertType" value="Retraction"/>
    <Param name="GraceID" value="S240320a"/>
  </What>
</voe:VOEvent>`)
	now := time.Now()
	schedule := service.handleNotice("gcn.classic.voevent.LVC_RETRACTION", 7, data, now)
	require.NotNil(t, schedule)
	assert.Equal(t, "S240320a", schedule.Name)
	assert.Empty(t, schedule.Targets)
	assert.Equal(t, now, *schedule.Expiration)
}

func TestTerrestrialSkipped(t *testing.T) {
	dir := t.TempDir()
	service := &Service{dataDir: dir}
	writeTargets(t, dir, "S240320a", 5)
	data := strings.Replace(string(notice("observation", "")), `name="Terrestrial" dataType="float" value="0.01"`, `name="Terrestrial" dataType="float" value="0.95"`, 1)
	schedule := service.handleNotice("t", 1, []byte(data), time.Now())
	assert.Nil(t, schedule)
}

func TestHighFARSkipped(t *testing.T) {
	dir := t.TempDir()
	service := &Service{dataDir: dir}
	writeTargets(t, dir, "S240320a", 5)
	data := strings.Replace(string(notice("observation", "")), `name="FAR" dataType="float" value="3.2e-10"`, `name="FAR" dataType="float" value="1e-05"`, 1)
	schedule := service.handleNotice("t", 1, []byte(data), time.Now())
	assert.Nil(t, schedule)
}

func TestPoorLocalizationSkipped(t *testing.T) {
	dir := t.TempDir()
	service := &Service{dataDir: dir}
	writeTargets(t, dir, "S240320a", 150)
	schedule := service.handleNotice("t", 1, notice("observation", ""), time.Now())
	assert.Nil(t, schedule)
}

func TestBBHTightensCutoff(t *testing.T) {
	dir := t.TempDir()
	service := &Service{dataDir: dir}
	// 50 targets is fine for a BNS but too loose for a BBH
	writeTargets(t, dir, "S240320a", 50)
	data := notice("observation", `<Param name="BBH" dataType="float" value="0.97"/>`)
	schedule := service.handleNotice("t", 1, data, time.Now())
	assert.Nil(t, schedule)
}

func TestMissingTargetsSkipped(t *testing.T) {
	service := &Service{dataDir: t.TempDir()}
	schedule := service.handleNotice("t", 1, notice("observation", ""), time.Now())
	assert.Nil(t, schedule)
}
