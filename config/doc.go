// Package config loads store definitions from YAML and registers them.
//
//	stores:
//	  - name: local
//	    location: file:///var/lib/blobs
//	    before_save:
//	      - max-size: 67108864
//	      - sniff-type
//	      - seal: {passphrase_env: BLOB_KEY}
//	    values: {tier: hot}
//	  - name: replicated
//	    locations:
//	      - s3://blobs/primary?region=us-east-1
//	      - ipfs://127.0.0.1:5001
//
// Secrets are never written into the file; hooks reference environment
// variables instead.
package config
