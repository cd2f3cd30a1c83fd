package textfsm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const showVersionOutput = `Cisco IOS Software, C3850 Software (CAT3K_CAA-UNIVERSALK9-M), Version 16.06.05, RELEASE SOFTWARE (fc2)
Technical Support: http://www.cisco.com/techsupport
Copyright (c) 1986-2018 by Cisco Systems, Inc.

ROM: IOS-XE ROMMON

SITE-01-SW uptime is 2 years, 3 weeks, 1 day, 4 hours, 12 minutes
Uptime for this control processor is 2 years, 3 weeks, 1 day
System returned to ROM by Power Failure or Unknown
Last reload reason: Power Failure or Unknown

cisco WS-C3850-24T (MIPS) processor with 4194304K bytes of physical memory.
Processor board ID FOC12345ABC
Base Ethernet MAC Address          : 00:1a:2b:3c:4d:5e
Model Number                       : WS-C3850-24T
System Serial Number               : FOC12345ABC

Configuration register is 0x102
`

const showCDPOutput = `-------------------------
Device ID: SITE-01-SW2.example.com
Entry address(es):
  IP Address: 10.0.0.2
Platform: cisco WS-C3850-48T, Capabilities: Switch IGMP
Interface: GigabitEthernet1/0/1,  Port ID (outgoing port): GigabitEthernet1/0/24
Holdtime : 155 sec

Version :
Cisco IOS Software, C3850 Software, Version 16.06.05

advertisement version: 2
-------------------------
Device ID: SITE-01-RTR.example.com
Entry address(es):
  IP Address: 10.0.0.1
Platform: cisco ISR4451-X/K9, Capabilities: Router Source-Route-Bridge
Interface: GigabitEthernet1/0/48,  Port ID (outgoing port): GigabitEthernet0/0/1
Holdtime : 132 sec

Version :
Cisco IOS XE Software, Version 16.09.04

advertisement version: 2
-------------------------
Device ID: SEP001122334455
Entry address(es):
  IP Address: 10.0.10.55
Platform: Cisco IP Phone 8851, Capabilities: Host Phone
Interface: GigabitEthernet1/0/5,  Port ID (outgoing port): Port 1
Holdtime : 178 sec

Version :
sip88xx.12-5-1SR1-4

advertisement version: 2
`

func loadTemplate(t *testing.T, name string) *Template {
	t.Helper()
	tmpl, err := NewStore("").Load(name)
	require.NoError(t, err)
	return tmpl
}

func TestIdentificationRecord(t *testing.T) {
	tmpl := loadTemplate(t, "cisco_ios_show_version")

	records, err := NewParser(tmpl).ParseString(showVersionOutput)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "SITE-01-SW", rec.String("HOSTNAME"))
	assert.Equal(t, "16.06.05", rec.String("VERSION"))
	assert.Equal(t, "IOS-XE ROMMON", rec.String("ROMMON"))
	assert.Equal(t, "0x102", rec.String("CONFIG_REGISTER"))
	assert.Equal(t, "2 years, 3 weeks, 1 day, 4 hours, 12 minutes", rec.String("UPTIME"))
	assert.Contains(t, rec.List("HARDWARE"), "WS-C3850-24T")
	assert.Contains(t, rec.List("SERIAL"), "FOC12345ABC")
	assert.Contains(t, rec.List("MAC_ADDRESS"), "00:1a:2b:3c:4d:5e")
}

func TestNeighborBlocksYieldOneRecordEach(t *testing.T) {
	tmpl := loadTemplate(t, "cisco_ios_show_cdp_neighbors_detail")

	records, err := NewParser(tmpl).ParseString(showCDPOutput)
	require.NoError(t, err)
	require.Len(t, records, 3)

	for _, rec := range records {
		assert.NotEmpty(t, rec.String("NEIGHBOR_NAME"))
	}

	first := records[0]
	assert.Equal(t, "SITE-01-SW2.example.com", first.String("NEIGHBOR_NAME"))
	assert.Equal(t, "10.0.0.2", first.String("MGMT_ADDRESS"))
	assert.Equal(t, "cisco WS-C3850-48T", first.String("PLATFORM"))
	assert.Equal(t, "GigabitEthernet1/0/1", first.String("LOCAL_INTERFACE"))
	assert.Equal(t, "GigabitEthernet1/0/24", first.String("NEIGHBOR_INTERFACE"))

	phone := records[2]
	assert.Equal(t, "SEP001122334455", phone.String("NEIGHBOR_NAME"))
	assert.Equal(t, "Cisco IP Phone 8851", phone.String("PLATFORM"))
}

func TestRequiredMissDropsRecordSilently(t *testing.T) {
	tmpl, err := ParseString(`Value Required NAME (\S+)
Value ADDR (\S+)

Start
  ^---- -> Record
  ^Name: ${NAME}
  ^Addr: ${ADDR}
`)
	require.NoError(t, err)

	records, err := NewParser(tmpl).ParseString(`Addr: 10.0.0.9
----
Name: good-host
Addr: 10.0.0.10
`)
	require.NoError(t, err)

	// The first block has no NAME; it is dropped without resetting the
	// machine, and the second block still emits.
	require.Len(t, records, 1)
	assert.Equal(t, "good-host", records[0].String("NAME"))
}

func TestFilldownCarriesAcrossRecords(t *testing.T) {
	tmpl, err := ParseString(`Value Filldown CHASSIS (\S+)
Value Required PORT (\S+)

Start
  ^Chassis: ${CHASSIS}
  ^Port: ${PORT} -> Record
`)
	require.NoError(t, err)

	records, err := NewParser(tmpl).ParseString(`Chassis: core-1
Port: Gi1/0/1
Port: Gi1/0/2
`)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "core-1", records[0].String("CHASSIS"))
	assert.Equal(t, "core-1", records[1].String("CHASSIS"))
	assert.Equal(t, "Gi1/0/2", records[1].String("PORT"))
}

func TestListAppendsAndSingleOverwrites(t *testing.T) {
	tmpl, err := ParseString(`Value NAME (\S+)
Value List MEMBERS (\S+)

Start
  ^Name: ${NAME}
  ^Member: ${MEMBERS}
`)
	require.NoError(t, err)

	records, err := NewParser(tmpl).ParseString(`Name: first
Name: second
Member: a
Member: b
Member: c
`)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "second", records[0].String("NAME"))
	assert.Equal(t, []string{"a", "b", "c"}, records[0].List("MEMBERS"))
}

func TestEOFStateSuppressesImplicitRecord(t *testing.T) {
	tmpl, err := ParseString(`Value NAME (\S+)

Start
  ^Name: ${NAME}

EOF
`)
	require.NoError(t, err)

	records, err := NewParser(tmpl).ParseString("Name: orphan\n")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestEndActionHaltsParsing(t *testing.T) {
	tmpl, err := ParseString(`Value List NAMES (\S+)

Start
  ^stop -> End
  ^Name: ${NAMES}
`)
	require.NoError(t, err)

	records, err := NewParser(tmpl).ParseString(`Name: one
stop
Name: two
`)
	require.NoError(t, err)
	// End halts without the implicit end-of-input record.
	assert.Empty(t, records)
}

func TestErrorActionFailsParse(t *testing.T) {
	tmpl, err := ParseString(`Value NAME (\S+)

Start
  ^%\s*Invalid -> Error "unrecognized command"
  ^Name: ${NAME}
`)
	require.NoError(t, err)

	_, err = NewParser(tmpl).ParseString("% Invalid input detected\n")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized command")
}

func TestContinueScansFollowingRules(t *testing.T) {
	tmpl, err := ParseString(`Value A (\S+)
Value B (\S+)

Start
  ^pair ${A} -> Continue
  ^pair \S+ ${B} -> Record
`)
	require.NoError(t, err)

	records, err := NewParser(tmpl).ParseString("pair left right\n")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "left", records[0].String("A"))
	assert.Equal(t, "right", records[0].String("B"))
}

func TestParserIsReusableAcrossInputs(t *testing.T) {
	tmpl, err := ParseString(`Value Filldown NAME (\S+)

Start
  ^Name: ${NAME}
`)
	require.NoError(t, err)

	p := NewParser(tmpl)
	records, err := p.ParseString("Name: first\n")
	require.NoError(t, err)
	require.Len(t, records, 1)

	// A fresh input must not observe the previous run's Filldown state.
	records, err = p.ParseString("no match here\n")
	require.NoError(t, err)
	assert.Empty(t, records)
}
