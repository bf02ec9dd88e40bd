package cryptde

type WrongKeyError struct{}

func (e WrongKeyError) Error() string {
	return "WrongKeyError"
}

type MalformedCiphertextError struct{}

func (e MalformedCiphertextError) Error() string {
	return "MalformedCiphertextError"
}

type EmptyKeyError struct{}

func (e EmptyKeyError) Error() string {
	return "EmptyKeyError"
}

type BadKeyError struct{}

func (e BadKeyError) Error() string {
	return "BadKeyError"
}
