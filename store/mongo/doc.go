// Package mongo implements store.Store on MongoDB with the official v2
// driver. Types and jobs live in two collections; compare-and-swap is a
// ReplaceOne filtered on id and status, which MongoDB applies atomically
// to a single document.
//
// The caller owns the client lifecycle. Pass a database handle to New:
//
//	client, _ := mongod.Connect(options.Client().ApplyURI(uri))
//	s := mongo.New(client.Database("docsync"))
//	if err := s.Migrate(ctx); err != nil { ... }
package mongo
