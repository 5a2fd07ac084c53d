package invoice

import (
	"testing"
	"time"

	"github.com/alapierre/go-ksef-offline/ksef"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const faXML = `<?xml version="1.0" encoding="UTF-8"?>
<Faktura xmlns="http://crd.gov.pl/wzor/2023/06/29/12648/">
  <Naglowek>
    <KodFormularza kodSystemowy="FA (2)" wersjaSchemy="1-0E">FA</KodFormularza>
    <WariantFormularza>2</WariantFormularza>
  </Naglowek>
  <Podmiot1>
    <DaneIdentyfikacyjne>
      <NIP>6891152920</NIP>
      <Nazwa>Sprzedawca Sp. z o.o.</Nazwa>
    </DaneIdentyfikacyjne>
  </Podmiot1>
  <Podmiot2>
    <DaneIdentyfikacyjne>
      <NIP>5260250274</NIP>
      <Nazwa>Nabywca S.A.</Nazwa>
    </DaneIdentyfikacyjne>
  </Podmiot2>
  <Fa>
    <KodWaluty>PLN</KodWaluty>
    <P_1>2025-01-15</P_1>
    <P_2>FV/2025/01/15</P_2>
  </Fa>
</Faktura>`

func TestParseMetadata(t *testing.T) {
	m, err := ParseMetadata([]byte(faXML))
	require.NoError(t, err)

	assert.Equal(t, "6891152920", m.SellerNip)
	assert.Equal(t, "5260250274", m.BuyerNip)
	assert.Equal(t, "FV/2025/01/15", m.Number)
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), m.IssueDate)
}

func TestParseMetadata_MissingSeller(t *testing.T) {
	xml := `<Faktura><Fa><P_1>2025-01-15</P_1><P_2>FV/1</P_2></Fa></Faktura>`

	_, err := ParseMetadata([]byte(xml))
	require.Error(t, err)
	assert.True(t, ksef.IsValidationError(err))
}

func TestParseMetadata_BadDate(t *testing.T) {
	xml := `<Faktura>
	  <Podmiot1><DaneIdentyfikacyjne><NIP>6891152920</NIP></DaneIdentyfikacyjne></Podmiot1>
	  <Fa><P_1>15-01-2025</P_1><P_2>FV/1</P_2></Fa>
	</Faktura>`

	_, err := ParseMetadata([]byte(xml))
	require.Error(t, err)
	assert.True(t, ksef.IsValidationError(err))
}

func TestParseMetadata_Empty(t *testing.T) {
	_, err := ParseMetadata(nil)
	require.Error(t, err)
	assert.True(t, ksef.IsValidationError(err))
}

func TestParseMetadata_WrongRoot(t *testing.T) {
	_, err := ParseMetadata([]byte(`<Paragon/>`))
	require.Error(t, err)
	assert.True(t, ksef.IsValidationError(err))
}
