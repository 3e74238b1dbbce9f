package testutils

import (
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

// TransportSuite is a reusable test suite around a scripted transport tree.
// Each test gets a freshly built FakeSource and a suppressed debug logger.
//
// Basic usage (automatic setup with the default battery fixture):
//
//	type DeviceSuite struct {
//	    testutils.TransportSuite
//	}
//
//	func TestDeviceSuite(t *testing.T) {
//	    suite.Run(t, new(DeviceSuite))
//	}
//
// Custom fixture usage:
//
//	func (s *DeviceSuite) SetupTest() {
//	    s.WithTransport().
//	        WithAdapter("hci0").WithPowered(true).
//	        WithDevice("AA:BB:CC:DD:EE:FF").
//	        WithService("180D").
//	        WithCharacteristic("2A37", "read,notify", []byte{80})
//
//	    s.TransportSuite.SetupTest() // call parent last to materialize
//	}
type TransportSuite struct {
	suite.Suite

	Helper *TestHelper
	Logger *logrus.Logger

	Builder *TransportBuilder
	Source  *FakeSource
}

// SetupSuite initializes the shared helper. Called once per suite.
func (s *TransportSuite) SetupSuite() {
	s.Helper = NewTestHelper(s.T())
	s.Logger = s.Helper.Logger
}

// SetupTest materializes the configured fixture, falling back to the default
// battery peripheral when no fixture was configured.
func (s *TransportSuite) SetupTest() {
	if s.Builder == nil {
		s.Builder = defaultTransportBuilder()
	}
	s.Source = s.Builder.Build()
}

// TearDownTest drops the fixture so the next test starts clean.
func (s *TransportSuite) TearDownTest() {
	s.Builder = nil
	s.Source = nil
}

// WithTransport returns the fixture builder for fluent configuration.
func (s *TransportSuite) WithTransport() *TransportBuilder {
	if s.Builder == nil {
		s.Builder = NewTransportBuilder()
	}
	return s.Builder
}

// defaultTransportBuilder configures a powered adapter with one BLE device
// carrying a Battery Service (180F) at 50%.
func defaultTransportBuilder() *TransportBuilder {
	return NewTransportBuilder().FromJSON(`
	{
		"adapters": [
			{
				"address": "hci0",
				"powered": true,
				"devices": [
					{
						"address": "11:22:33:44:55:66",
						"name": "Battery Beacon",
						"services": [
							{
								"uuid": "180f",
								"characteristics": [
									{ "uuid": "2a19", "flags": "read,notify", "value": [50] }
								]
							}
						]
					}
				]
			}
		]
	}`)
}
