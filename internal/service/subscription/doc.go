// Package subscription implements newsletter signup.
//
// Subscribe takes an untrusted form body through the strict decoder, the
// domain validators and finally the Repository. Every step is terminal on
// failure; nothing is retried and no partial record reaches storage.
//
// The service layer depends on the Repository and Notifier interfaces
// defined in this package. It never imports net/http or database/sql
// directly.
package subscription
