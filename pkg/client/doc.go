// Package client is the Go SDK for the britcoin daemon's HTTP API.
//
// Chat bridges use it to feed messages and commands to the ledger:
//
//	c, err := client.New("http://localhost:8080",
//	    client.WithBearerToken(os.Getenv("BRITCOIN_TOKEN")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := c.PostMessage(ctx, "#general", nick, text)
//	if err == nil && res.Mined {
//	    log.Printf("%s mined block %d", nick, res.Block.Index)
//	}
//
// Read endpoints need no token:
//
//	stats, err := c.Stats(ctx)
//	if errors.Is(err, client.ErrNoCoinsMined) {
//	    // nothing minted yet
//	}
package client
