package mail

import "fmt"

// VerificationEmail asks a newly registered client to confirm their address.
func VerificationEmail(to, verificationURL string) Message {
	return Message{
		To:      []string{to},
		Subject: "Verify Your Email",
		Body:    fmt.Sprintf("Click the link to verify your email: %s", verificationURL),
	}
}

// UploadRequestEmail sends a client the link for a document request.
func UploadRequestEmail(to, uploadURL string) Message {
	return Message{
		To:      []string{to},
		Subject: "Document Upload Request",
		Body:    fmt.Sprintf("Please click here %s for instructions on document upload", uploadURL),
	}
}

// UploadCompletedEmail tells the RM that a client's documents arrived.
func UploadCompletedEmail(to, clientName string) Message {
	return Message{
		To:      []string{to},
		Subject: "Document Successfully Uploaded",
		Body:    fmt.Sprintf("A document for %s was successfully uploaded.", clientName),
	}
}
