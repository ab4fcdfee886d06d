package phone

// Validate checks a Kenyan MSISDN in the 2547XXXXXXXX / 2541XXXXXXXX form
// that the M-Pesa STK push API requires.
func Validate(msisdn string) bool {
	if len(msisdn) != 12 {
		return false
	}
	for i := 0; i < len(msisdn); i++ {
		if msisdn[i] < '0' || msisdn[i] > '9' {
			return false
		}
	}
	if msisdn[0] != '2' || msisdn[1] != '5' || msisdn[2] != '4' {
		return false
	}
	return msisdn[3] == '7' || msisdn[3] == '1'
}
