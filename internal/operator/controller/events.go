package controller

// Event reasons recorded on KafkaCluster objects.
const (
	EventReasonReconcileSucceeded           = "ReconcileSucceeded"
	EventReasonReconcileFailed              = "ReconcileFailed"
	EventReasonInvalidConfiguration         = "InvalidConfiguration"
	EventReasonCertificateAuthorityCreated  = "CertificateAuthorityCreated"
	EventReasonCertificateAuthorityRenewed  = "CertificateAuthorityRenewed"
	EventReasonCertificateAuthorityReplaced = "CertificateAuthorityReplaced"
	EventReasonCertificateAuthorityRepaired = "CertificateAuthorityRepaired"
	EventReasonRollingRestart               = "RollingRestart"
	EventReasonScaledUp                     = "ScaledUp"
	EventReasonScaledDown                   = "ScaledDown"
)
