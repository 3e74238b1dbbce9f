package governor

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/srg/blegov/internal/testutils"
	"github.com/srg/blegov/internal/testutils/mocks"
	"github.com/srg/blegov/pkg/bluetooth"
	"github.com/srg/blegov/pkg/manager"
)

const testCharacteristicURL = testDeviceURL + "/180f/2a19"

// recordingValueListener captures inbound characteristic values in order.
type recordingValueListener struct {
	mu     sync.Mutex
	values [][]byte
}

func (l *recordingValueListener) ValueChanged(value []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.values = append(l.values, append([]byte(nil), value...))
}

func (l *recordingValueListener) seen() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]byte, len(l.values))
	copy(out, l.values)
	return out
}

// CharacteristicGovernorSuite drives the characteristic governor against the
// default battery peripheral, whose level characteristic supports read and
// notify.
type CharacteristicGovernorSuite struct {
	testutils.TransportSuite

	mgr  *testutils.FakeManager
	char *testutils.FakeCharacteristic
	gov  *Characteristic

	values *recordingValueListener
}

func TestCharacteristicGovernorSuite(t *testing.T) {
	suite.Run(t, new(CharacteristicGovernorSuite))
}

func (suite *CharacteristicGovernorSuite) SetupTest() {
	suite.TransportSuite.SetupTest()

	addr := bluetooth.MustParseAddress(testCharacteristicURL)
	suite.mgr = testutils.NewFakeManager(suite.Source)
	suite.char = suite.Source.CharacteristicAt(addr)
	suite.gov = NewCharacteristic(addr, suite.mgr, suite.Logger, 0)

	suite.values = &recordingValueListener{}
	suite.gov.AddValueListener(suite.values)
}

func (suite *CharacteristicGovernorSuite) TestMaintainArmsValueNotifications() {
	// GOAL: Verify a notify-capable characteristic gets its value channel
	// armed on the first maintenance pass
	//
	// TEST SCENARIO: Maintain → ready, value notifications armed

	suite.gov.Maintain()

	suite.True(suite.gov.Ready())
	suite.True(suite.char.ValueNotificationsArmed())
}

func (suite *CharacteristicGovernorSuite) TestFlagCapabilities() {
	// GOAL: Verify the property flags project onto the capability accessors
	//
	// TEST SCENARIO: Maintain → flags read,notify → readable and notifiable,
	// not writable

	suite.gov.Maintain()

	flags, err := suite.gov.Flags()
	suite.Require().NoError(err)
	suite.Equal([]string{"read", "notify"}, flags)

	readable, err := suite.gov.Readable()
	suite.Require().NoError(err)
	suite.True(readable)

	writable, err := suite.gov.Writable()
	suite.Require().NoError(err)
	suite.False(writable)

	notifiable, err := suite.gov.Notifiable()
	suite.Require().NoError(err)
	suite.True(notifiable)
}

func (suite *CharacteristicGovernorSuite) TestReadWritePassThrough() {
	// GOAL: Verify reads and writes pass through to the transport and stamp
	// governor activity
	//
	// TEST SCENARIO: Maintain → Read returns the stored value → Write lands
	// on the transport → LastActivity advanced

	suite.gov.Maintain()
	before := suite.gov.LastActivity()

	value, err := suite.gov.Read()
	suite.Require().NoError(err)
	suite.Equal([]byte{50}, value)

	suite.Require().NoError(suite.gov.Write([]byte{0x01}))
	suite.Equal([][]byte{{0x01}}, suite.char.Writes())
	suite.False(suite.gov.LastActivity().Before(before))
}

func (suite *CharacteristicGovernorSuite) TestValueFanOut() {
	// GOAL: Verify inbound values reach listeners and the capture stream in
	// arrival order
	//
	// TEST SCENARIO: Two notifications → listener sees both → NextValue pops
	// the oldest → DrainValues empties the rest

	suite.gov.Maintain()

	suite.char.TriggerValue([]byte{0x64})
	suite.char.TriggerValue([]byte{0x63})

	suite.Equal([][]byte{{0x64}, {0x63}}, suite.values.seen())

	value, ok := suite.gov.NextValue()
	suite.Require().True(ok)
	suite.Equal([]byte{0x64}, value)

	suite.Equal([][]byte{{0x63}}, suite.gov.DrainValues())

	_, ok = suite.gov.NextValue()
	suite.False(ok)
}

func (suite *CharacteristicGovernorSuite) TestLateNotifySupportArmsOnUpdate() {
	// GOAL: Verify a characteristic that advertises notify support only
	// after the first pass still gets armed by a later pass
	//
	// TEST SCENARIO: Flags without notify → Maintain leaves the channel
	// dark → flags gain notify → next Maintain arms it

	url := testDeviceURL + "/180f/2a20"
	char := testutils.NewFakeCharacteristic(url, "read")
	source := testutils.NewFakeSource().AddCharacteristic(char)
	gov := NewCharacteristic(bluetooth.MustParseAddress(url), testutils.NewFakeManager(source), suite.Logger, 0)

	gov.Maintain()
	suite.True(gov.Ready())
	suite.False(char.ValueNotificationsArmed())

	char.SetFlags("read", "notify")
	gov.Maintain()
	suite.True(char.ValueNotificationsArmed())
}

func (suite *CharacteristicGovernorSuite) TestFailedSubscriptionRetries() {
	// GOAL: Verify a failing subscription keeps the governor not ready and a
	// later pass recovers once the transport cooperates
	//
	// TEST SCENARIO: Enable fails → Maintain not ready → error cleared →
	// Maintain ready and armed

	suite.char.NotifyErr = errors.New("dbus: operation failed")
	suite.gov.Maintain()
	suite.False(suite.gov.Ready())

	suite.char.NotifyErr = nil
	suite.gov.Maintain()
	suite.True(suite.gov.Ready())
	suite.True(suite.char.ValueNotificationsArmed())
}

func (suite *CharacteristicGovernorSuite) TestResetKeepsCapturedValues() {
	// GOAL: Verify reset disarms the channel and disposes the handle while
	// already captured values stay pullable
	//
	// TEST SCENARIO: Capture a value → Reset → not ready, disarmed, handle
	// disposed → captured value still drains

	suite.gov.Maintain()
	suite.char.TriggerValue([]byte{0x07})

	suite.gov.Reset()

	suite.False(suite.gov.Ready())
	suite.False(suite.char.ValueNotificationsArmed())
	suite.Equal(1, suite.char.DisposeCount())
	suite.Equal([][]byte{{0x07}}, suite.gov.DrainValues())
}

func TestCharacteristic_AcquiresHandleOnceThroughManager(t *testing.T) {
	addr := bluetooth.MustParseAddress(testCharacteristicURL)
	fake := testutils.NewFakeCharacteristic(testCharacteristicURL, "read", "notify")

	mgr := &mocks.MockManager{}
	mgr.On("NativeCharacteristic", addr).Return(fake, true).Once()

	gov := NewCharacteristic(addr, mgr, testLogger(), 0)
	gov.Maintain()
	gov.Maintain()

	require.True(t, gov.Ready())
	mgr.AssertExpectations(t)
	mgr.AssertNumberOfCalls(t, "NativeCharacteristic", 1)
}

func TestCharacteristic_AccessorsNotReady(t *testing.T) {
	addr := bluetooth.MustParseAddress(testCharacteristicURL)
	gov := NewCharacteristic(addr, testutils.NewFakeManager(nil), testLogger(), 0)

	checks := map[string]func() error{
		"Flags":      func() error { _, err := gov.Flags(); return err },
		"Readable":   func() error { _, err := gov.Readable(); return err },
		"Writable":   func() error { _, err := gov.Writable(); return err },
		"Notifiable": func() error { _, err := gov.Notifiable(); return err },
		"Read":       func() error { _, err := gov.Read(); return err },
		"Write":      func() error { return gov.Write([]byte{0x01}) },
	}
	for name, call := range checks {
		t.Run(name, func(t *testing.T) {
			err := call()
			require.Error(t, err)
			assert.ErrorIs(t, err, manager.ErrNotReady)
		})
	}

	// The capture stream has no transport dependency and stays usable.
	_, ok := gov.NextValue()
	assert.False(t, ok)
	assert.Empty(t, gov.DrainValues())
}

func TestCharacteristic_StringIncludesKind(t *testing.T) {
	gov := NewCharacteristic(bluetooth.MustParseAddress(testCharacteristicURL), testutils.NewFakeManager(nil), testLogger(), 0)
	assert.Equal(t, "[Characteristic] /hci0/11:22:33:44:55:66/180f/2a19", gov.String())
}
