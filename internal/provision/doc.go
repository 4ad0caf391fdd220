/*
Package provision turns a host into a Samba Active Directory domain controller.

A run executes a fixed plan of stages against the local system:

  - write-local-settings: domain controller shares and globals in smb.conf
  - provision-or-join: samba-tool creates a new forest or joins a domain
  - write-kerberos: krb5.conf for the realm
  - write-dns: 127.0.0.1 in the static resolver list (DNS managed only)
  - update-network: netconfig applies the resolver list (DNS managed only)

The run stops at the first failing stage, except that a failed domain join is
reported and the remaining stages still run. Nothing is rolled back; every
stage except provision-or-join can be safely re-applied.

Realm and workgroup are read from smb.conf when each stage runs. Callers seed
them into the loaded configuration before starting the run.

Runs on one host must not overlap. Callers serialize them with HostLock.
*/
package provision
